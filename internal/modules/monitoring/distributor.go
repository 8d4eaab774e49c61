package monitoring

import (
	"github.com/rs/zerolog"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/broker"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

// DistributorConfig selects the subscribed channels and the minimum
// severity persisted to the queryable error store. Events below the
// threshold still reach the durable error log.
type DistributorConfig struct {
	ErrorChannel      string
	MonitoringChannel string
	SeverityThreshold events.Severity
}

// Distributor consumes the worker's error and monitoring channels and
// fans each message out: errors to the durable log, the error store and
// the bus; monitoring events to the recent window, the alert tracker
// and the bus. A malformed message is logged and dropped without
// disturbing the subscription.
type Distributor struct {
	cfg      DistributorConfig
	errorLog *ErrorLog
	store    *ErrorRepository
	window   *EventWindow
	tracker  *AlertTracker
	bus      *events.Bus
	log      zerolog.Logger

	errorSub      *broker.Subscriber
	monitoringSub *broker.Subscriber
}

// NewDistributor wires the two channel subscriptions. Call Start to
// begin consuming.
func NewDistributor(
	client *broker.Client,
	cfg DistributorConfig,
	errorLog *ErrorLog,
	store *ErrorRepository,
	window *EventWindow,
	tracker *AlertTracker,
	bus *events.Bus,
	log zerolog.Logger,
) *Distributor {
	d := &Distributor{
		cfg:      cfg,
		errorLog: errorLog,
		store:    store,
		window:   window,
		tracker:  tracker,
		bus:      bus,
		log:      log.With().Str("component", "distributor").Logger(),
	}
	d.errorSub = broker.NewSubscriber(client, cfg.ErrorChannel, d.handleErrorMessage, log)
	d.monitoringSub = broker.NewSubscriber(client, cfg.MonitoringChannel, d.handleMonitoringMessage, log)
	return d
}

// Start begins consuming both channels. Subscriptions start fresh;
// messages published before startup are not replayed.
func (d *Distributor) Start() {
	d.errorSub.Start()
	d.monitoringSub.Start()
	d.log.Info().
		Str("error_channel", d.cfg.ErrorChannel).
		Str("monitoring_channel", d.cfg.MonitoringChannel).
		Str("severity_threshold", string(d.cfg.SeverityThreshold)).
		Msg("Distributor started")
}

// Stop terminates both subscriptions and waits for them to drain.
func (d *Distributor) Stop() {
	d.errorSub.Stop()
	d.monitoringSub.Stop()
	d.log.Info().Msg("Distributor stopped")
}

// ErrorChannelConnected reports whether the error subscription is live.
func (d *Distributor) ErrorChannelConnected() bool {
	return d.errorSub.Connected()
}

// MonitoringChannelConnected reports whether the monitoring
// subscription is live.
func (d *Distributor) MonitoringChannelConnected() bool {
	return d.monitoringSub.Connected()
}

// handleErrorMessage processes one error-channel message. The durable
// log gets every valid event; the store only those at or above the
// severity threshold. A failure in one sink never blocks the others.
func (d *Distributor) handleErrorMessage(channel string, raw []byte) {
	event, err := events.ParseErrorEvent(raw)
	if err != nil {
		d.log.Warn().Err(err).Str("channel", channel).Msg("Dropping undecodable error message")
		return
	}

	if err := d.errorLog.Append(event); err != nil {
		d.log.Error().Err(err).Str("error_id", event.ErrorID).Msg("Failed to append to error log")
	}

	if event.Severity.AtLeast(d.cfg.SeverityThreshold) {
		if _, err := d.store.Insert(event); err != nil {
			d.log.Error().Err(err).Str("error_id", event.ErrorID).Msg("Failed to persist error event")
		}
	}

	d.log.Debug().
		Str("error_id", event.ErrorID).
		Str("severity", string(event.Severity)).
		Str("source", event.Source).
		Msg("Error event distributed")

	d.bus.Emit(events.ErrorReported, "monitoring", map[string]interface{}{
		"error_id":  event.ErrorID,
		"source":    event.Source,
		"severity":  string(event.Severity),
		"category":  string(event.Category),
		"message":   event.Message,
		"component": event.Component,
		"timestamp": event.Timestamp.UTC(),
	})
}

// handleMonitoringMessage processes one monitoring-channel message:
// recent window, alert lifecycle, then republish on the internal bus
// so connected dashboards see it.
func (d *Distributor) handleMonitoringMessage(channel string, raw []byte) {
	event, err := events.ParseMonitoringEvent(raw)
	if err != nil {
		d.log.Warn().Err(err).Str("channel", channel).Msg("Dropping undecodable monitoring message")
		return
	}

	d.window.Add(event)

	switch p := event.Payload.(type) {
	case *events.AlertTriggeredPayload:
		if err := d.tracker.Trigger(p.AlertID, string(p.Severity), p.Message, p.Source, event.Timestamp.Time); err != nil {
			d.log.Error().Err(err).Str("alert_id", p.AlertID).Msg("Failed to record alert trigger")
		}
	case *events.AlertResolvedPayload:
		if _, err := d.tracker.Resolve(p.AlertID, event.Timestamp.Time); err != nil {
			d.log.Error().Err(err).Str("alert_id", p.AlertID).Msg("Failed to record alert resolution")
		}
	}

	d.bus.Emit(event.EventType, "monitoring", event.BusData())
}
