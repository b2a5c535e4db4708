// Package settings loads the server configuration.
//
// Sources, lowest precedence first: built-in defaults, the TOML config file
// (TANGO_CONFIG, or $HOME/.config/tango/config.toml when it exists), and
// environment variables prefixed with TANGO_ with dots replaced by
// underscores (TANGO_SERVER_PORT, TANGO_STORE_BACKEND). A .env file is
// loaded into the environment first without overriding variables already
// set. Command-line flags are applied on top by the caller.
//
// Example config.toml:
//
//	[server]
//	host = "0.0.0.0"
//	port = 8080
//
//	[store]
//	backend = "sqlite"   # memory, file or sqlite
//	dir = "/var/lib/tango"
//
//	[game]
//	timezone = "Europe/Lisbon"
//
//	[log]
//	level = "debug"
//	format = "json"
package settings
