package core

import (
	"strconv"
	"strings"
	"time"
)

// ChannelKind names a family of destinations published by the server.
type ChannelKind string

const (
	ChannelBatch           ChannelKind = "batch"
	ChannelRun             ChannelKind = "run"
	ChannelGlobal          ChannelKind = "global"
	ChannelRunProgress     ChannelKind = "run-progress"
	ChannelStatus          ChannelKind = "status"
	ChannelEntityErrors    ChannelKind = "entity-errors"
	ChannelErrors          ChannelKind = "errors"
	ChannelBatchesOverview ChannelKind = "batches-overview"
	ChannelUserQueue       ChannelKind = "user-queue"
	ChannelCustom          ChannelKind = "custom"
)

// TimestampLayout formats announcement timestamps: ISO-8601, UTC, milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Channel is a subscribe destination plus the optional control destination
// that receives the subscription announcement.
type Channel struct {
	Kind        ChannelKind
	Destination string

	// Announce is where the announcement is sent. Empty disables it.
	Announce string

	// Fields identify the subscription in the announcement body.
	Fields map[string]any
}

// channelTemplate is the data that distinguishes one channel flavor from
// another. "{id}" is replaced with the key.
type channelTemplate struct {
	destination string
	announce    string
	field       string
}

var channelTemplates = map[ChannelKind]channelTemplate{
	ChannelBatch:           {destination: "/topic/batch/{id}", announce: "/app/batch/{id}/subscribe", field: "batchId"},
	ChannelRun:             {destination: "/topic/run/{id}", announce: "/app/run/{id}/subscribe", field: "runId"},
	ChannelGlobal:          {destination: "/topic/global", announce: "/app/global/subscribe"},
	ChannelRunProgress:     {destination: "/topic/progress/run/{id}"},
	ChannelStatus:          {destination: "/topic/status/{id}"},
	ChannelEntityErrors:    {destination: "/topic/error/{id}"},
	ChannelErrors:          {destination: "/topic/errors"},
	ChannelBatchesOverview: {destination: "/topic/batches/all"},
	ChannelUserQueue:       {destination: "/user/queue/messages"},
}

func channelFor(kind ChannelKind, key int64) Channel {
	tpl := channelTemplates[kind]
	id := strconv.FormatInt(key, 10)
	ch := Channel{
		Kind:        kind,
		Destination: strings.ReplaceAll(tpl.destination, "{id}", id),
		Announce:    strings.ReplaceAll(tpl.announce, "{id}", id),
		Fields:      map[string]any{},
	}
	if tpl.field != "" {
		ch.Fields[tpl.field] = key
	}
	return ch
}

// BatchChannel is /topic/batch/{batchID}, announced at /app/batch/{batchID}/subscribe.
func BatchChannel(batchID int64) Channel { return channelFor(ChannelBatch, batchID) }

// RunChannel is /topic/run/{runID}, announced at /app/run/{runID}/subscribe.
func RunChannel(runID int64) Channel { return channelFor(ChannelRun, runID) }

// GlobalChannel is /topic/global, announced at /app/global/subscribe.
func GlobalChannel() Channel { return channelFor(ChannelGlobal, 0) }

// RunProgressChannel carries progress updates of one run.
func RunProgressChannel(runID int64) Channel { return channelFor(ChannelRunProgress, runID) }

// StatusChannel carries status changes of one entity.
func StatusChannel(entityID int64) Channel { return channelFor(ChannelStatus, entityID) }

// EntityErrorsChannel carries errors raised for one batch or run.
func EntityErrorsChannel(entityID int64) Channel { return channelFor(ChannelEntityErrors, entityID) }

// ErrorsChannel carries every error the server broadcasts.
func ErrorsChannel() Channel { return channelFor(ChannelErrors, 0) }

// BatchesOverviewChannel carries the periodic status of all batches.
func BatchesOverviewChannel() Channel { return channelFor(ChannelBatchesOverview, 0) }

// UserQueueChannel carries messages addressed to the authenticated user.
func UserQueueChannel() Channel { return channelFor(ChannelUserQueue, 0) }

// DestinationChannel subscribes to an arbitrary destination without announcement.
func DestinationChannel(destination string) Channel {
	return Channel{Kind: ChannelCustom, Destination: destination}
}

// announcement builds the body sent to Announce.
func (ch Channel) announcement(at time.Time) map[string]any {
	body := make(map[string]any, len(ch.Fields)+1)
	for k, v := range ch.Fields {
		body[k] = v
	}
	body["timestamp"] = at.UTC().Format(TimestampLayout)
	return body
}
