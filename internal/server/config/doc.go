// Package config defines meshsidecar's process configuration: the
// listen addresses for each protocol front end, the shard-routing
// hash/distribution strategy, and the MySQL credential/table settings
// KVector dispatch needs. It is loaded with internal/infra/confloader
// (YAML file, then environment overrides prefixed per
// confloader.WithEnvPrefix), following an Env > File > Default
// precedence; no setting is read from a command-line flag.
package config
