// Package config loads alusync configuration.
//
// Configuration is layered: built-in defaults, then each file added with
// AddLayer (JSON or YAML, chosen by extension), then ALUSYNC_* environment
// variables. Later layers only override the keys they set.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/hub.yaml")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Recognised environment overrides:
//
//	ALUSYNC_HUB_LISTEN          hub.listen
//	ALUSYNC_EVENT_LOG_CAPACITY  hub.event_log_capacity
//	ALUSYNC_HUB_URL             client.hub_url
//	ALUSYNC_RECONNECT_DELAY     client.reconnect_delay
//	ALUSYNC_NATS_URL            mirror.nats_url
//	ALUSYNC_BRIDGE_BACKEND      bridge.backend
//
// Validation failures and unreadable files wrap errors.ErrInvalidConfig or
// are classified fatal; a process should exit on either.
package config
