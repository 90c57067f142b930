package actionflow

import (
	enginepkg "github.com/drblury/actionflow/internal/engine"
	configpkg "github.com/drblury/actionflow/internal/engine/config"
	errspkg "github.com/drblury/actionflow/internal/engine/errors"
	idspkg "github.com/drblury/actionflow/internal/engine/ids"
	jsoncodec "github.com/drblury/actionflow/internal/engine/jsoncodec"
	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
	metadatapkg "github.com/drblury/actionflow/internal/engine/metadata"
	transportpkg "github.com/drblury/actionflow/transport"
	"google.golang.org/protobuf/proto"
)

type (
	Config              = configpkg.Config
	Service             = enginepkg.Service
	ServiceDependencies = enginepkg.ServiceDependencies

	// Core action pipeline types.
	Action        = enginepkg.Action
	Matcher       = enginepkg.Matcher
	Definition    = enginepkg.Definition
	LimitSpec     = enginepkg.LimitSpec
	Deps          = enginepkg.Deps
	StateAccessor = enginepkg.StateAccessor
	ValidateFunc  = enginepkg.ValidateFunc
	TransformFunc = enginepkg.TransformFunc
	ProcessFunc   = enginepkg.ProcessFunc
	StageContext  = enginepkg.StageContext
	Decision      = enginepkg.Decision
	Forwarder     = enginepkg.Forwarder
	Dispatcher    = enginepkg.Dispatcher
	CancelSignal  = enginepkg.CancelSignal

	Engine        = enginepkg.Engine
	EngineOptions = enginepkg.Options
	Fault         = enginepkg.Fault

	Execution        = enginepkg.Execution
	ExecutionState   = enginepkg.ExecutionState
	ExecutionContext = enginepkg.ExecutionContext
	ExecutionHooks   = enginepkg.ExecutionHooks
	LogicInfo        = enginepkg.LogicInfo
	LogicStats       = enginepkg.LogicStats
	Metrics          = enginepkg.Metrics

	MiddlewareBuilder      = enginepkg.MiddlewareBuilder
	MiddlewareRegistration = enginepkg.MiddlewareRegistration

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Modular transport types.
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService     = enginepkg.NewService
	TryNewService  = enginepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig

	// In-process engine, usable without any broker bridge.
	NewEngine = enginepkg.New

	NewAction = enginepkg.NewAction

	// Matchers
	MatchType        = enginepkg.MatchType
	MatchPattern     = enginepkg.MatchPattern
	MustMatchPattern = enginepkg.MustMatchPattern
	MatchTypes       = enginepkg.MatchTypes
	MatchAny         = enginepkg.MatchAny
	MatchAll         = enginepkg.MatchAll

	NewCancelSignal = enginepkg.NewCancelSignal

	// Bridge middleware
	DefaultMiddlewares      = enginepkg.DefaultMiddlewares
	CorrelationIDMiddleware = enginepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = enginepkg.LogMessagesMiddleware
	TracerMiddleware        = enginepkg.TracerMiddleware
	MetricsMiddleware       = enginepkg.MetricsMiddleware
	RecovererMiddleware     = enginepkg.RecovererMiddleware

	// Execution lifecycle hooks
	LoggingHooks = enginepkg.LoggingHooks

	NewMetrics = enginepkg.NewMetrics

	// Wire envelope codec
	EncodeAction = enginepkg.EncodeAction
	DecodeAction = enginepkg.DecodeAction

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrEngineRequired     = errspkg.ErrEngineRequired
	ErrMatcherRequired    = errspkg.ErrMatcherRequired
	ErrNameRequired       = errspkg.ErrNameRequired
	ErrDuplicateName      = errspkg.ErrDuplicateName
	ErrConflictingLimits  = errspkg.ErrConflictingLimits
	ErrNonPositiveWindow  = errspkg.ErrNonPositiveWindow
	ErrDecisionSettled    = errspkg.ErrDecisionSettled
	ErrAlreadyForwarded   = errspkg.ErrAlreadyForwarded
	ErrActionTypeRequired = errspkg.ErrActionTypeRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrHandlersRequired   = errspkg.ErrHandlersRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NopLogger                 = loggingpkg.Nop

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID

	// Modular transport registry.
	// Import individual backends via: _ "github.com/drblury/actionflow/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
)

// Execution states reported by LogicInfo and ExecutionContext.
const (
	StateValidating   = enginepkg.StateValidating
	StateTransforming = enginepkg.StateTransforming
	StateProcessing   = enginepkg.StateProcessing
	StateCancelled    = enginepkg.StateCancelled
	StateCompleted    = enginepkg.StateCompleted
)

// Stage names used in Fault reports.
const (
	StageValidate  = enginepkg.StageValidate
	StageTransform = enginepkg.StageTransform
	StageProcess   = enginepkg.StageProcess
)

// Metadata keys - use these constants for standard metadata fields.
const (
	MetadataKeyActionType    = enginepkg.MetadataKeyActionType
	MetadataKeyCorrelationID = enginepkg.MetadataKeyCorrelationID
	MetadataKeyTraceID       = enginepkg.MetadataKeyTraceID
	MetadataKeySpanID        = enginepkg.MetadataKeySpanID

	// FaultActionType is the action type of fault notices published on the
	// fault topic.
	FaultActionType = enginepkg.FaultActionType
)

// PayloadAs decodes an action payload into T. Payloads that already carry a T
// are returned directly; anything else goes through a JSON round trip.
func PayloadAs[T any](action Action) (T, error) {
	return enginepkg.PayloadAs[T](action)
}

// ProtoPayload decodes an action payload into the protobuf message T using
// protojson.
func ProtoPayload[T proto.Message](action Action) (T, error) {
	return enginepkg.ProtoPayload[T](action)
}

func NewProtoMessage[T proto.Message]() (T, error) {
	return enginepkg.NewProtoMessage[T]()
}

func MustProtoMessage[T proto.Message]() T {
	return enginepkg.MustProtoMessage[T]()
}
