package main

import (
	"context"
	"time"

	"battery-observer/src/data_source/homeassistant"
	"battery-observer/src/helpers"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"
	"battery-observer/src/network"
	"battery-observer/src/notify"
	"battery-observer/src/storage"
)

// -----------------------------------------------------------------------------

// setupArchives builds and initializes the configured archives and wraps them
// in the async writer. With no archives configured the writer drops nothing
// and writes nothing.
func setupArchives(ctx context.Context, config *models.MConfig, m *metrics.Metrics, appLogger *logger.Logger) (*storage.Archiver, error) {
	archives, err := storage.NewArchives(config)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := storage.InitializeAll(initCtx, archives, helpers.NewErrorHandler(appLogger)); err != nil {
		return nil, err
	}

	for _, a := range archives {
		appLogger.Info("Archiving readings to %s", a.Name())
	}
	return storage.NewArchiver(archives, config.Storage.QueueSize, m, logger.NewLogger(config, "Archiver")), nil
}

// -----------------------------------------------------------------------------

// setupNotifiers returns the alert fan-out and a func releasing its
// connections.
func setupNotifiers(config *models.MConfig, appLogger *logger.Logger) (interfaces.INotifier, func(), error) {
	netLogger := logger.NewLogger(config, "NetworkManager")
	netMgr := network.NewNetworkManager(time.Duration(config.Notify.TimeoutSeconds)*time.Second, netLogger)

	ha, err := notify.NewHomeAssistantNotifier(
		config.EventSource.URL,
		config.EventSource.Token,
		config.Notify.Service,
		config.Notify.Title,
		netMgr,
		logger.NewLogger(config, "HomeAssistantNotifier"),
	)
	if err != nil {
		return nil, nil, err
	}
	appLogger.Info("Notifications go to %s", ha.URL)

	notifiers := notify.Multi{ha}
	closeFn := func() {}

	if config.Notify.MQTT.Enabled {
		mq, client, err := notify.NewMQTTNotifier(config.Notify.MQTT, config.Notify.Title, logger.NewLogger(config, "MQTTNotifier"))
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, mq)
		closeFn = func() { client.Disconnect(250) }
		appLogger.Info("Alerts also published to mqtt topic %s", config.Notify.MQTT.Topic)
	}

	return notifiers, closeFn, nil
}

// -----------------------------------------------------------------------------

// setupSource builds the Home Assistant event source
func setupSource(config *models.MConfig) *homeassistant.HomeAssistantSource {
	return homeassistant.NewHomeAssistantSource(config.EventSource, logger.NewLogger(config, "HomeAssistantSource"))
}
