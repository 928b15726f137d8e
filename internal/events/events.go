package events

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
)

// Event is an analytics event that can be passed to the summarizer.
type Event interface {
	GetCreationDate() ldtime.UnixMillisecondTime
}

// BaseEvent holds the properties common to all events.
type BaseEvent struct {
	CreationDate ldtime.UnixMillisecondTime
}

// GetCreationDate returns the event timestamp.
func (e BaseEvent) GetCreationDate() ldtime.UnixMillisecondTime {
	return e.CreationDate
}

// FeatureRequestEvent records one flag evaluation. For a flag that was not found, Variation and Version
// are empty and Value is the same as Default.
type FeatureRequestEvent struct {
	BaseEvent
	Key       string
	Variation ldvalue.OptionalInt
	Version   ldvalue.OptionalInt
	Value     ldvalue.Value
	Default   ldvalue.Value
}

// IdentifyEvent registers a user. It is not counted by the summarizer.
type IdentifyEvent struct {
	BaseEvent
	UserKey string
}

// CustomEvent is an application-defined event. It is not counted by the summarizer.
type CustomEvent struct {
	BaseEvent
	Key  string
	Data ldvalue.Value
}

// NewFeatureRequestEvent creates the event for an evaluation of a known flag.
func NewFeatureRequestEvent(
	flag *ldmodel.FeatureFlag,
	variation ldvalue.OptionalInt,
	value ldvalue.Value,
	defaultValue ldvalue.Value,
	creationDate ldtime.UnixMillisecondTime,
) FeatureRequestEvent {
	return FeatureRequestEvent{
		BaseEvent: BaseEvent{CreationDate: creationDate},
		Key:       flag.Key,
		Variation: variation,
		Version:   ldvalue.NewOptionalInt(flag.Version),
		Value:     value,
		Default:   defaultValue,
	}
}

// NewUnknownFlagEvent creates the event for an evaluation of a flag that does not exist. The evaluation
// result is always the default value.
func NewUnknownFlagEvent(
	key string,
	defaultValue ldvalue.Value,
	creationDate ldtime.UnixMillisecondTime,
) FeatureRequestEvent {
	return FeatureRequestEvent{
		BaseEvent: BaseEvent{CreationDate: creationDate},
		Key:       key,
		Value:     defaultValue,
		Default:   defaultValue,
	}
}
