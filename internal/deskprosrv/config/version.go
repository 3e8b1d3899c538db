package config

// Version is stamped at build time with
// -ldflags "-X github.com/softflow/deskpro/internal/deskprosrv/config.Version=...".
var Version = "0.1.0-dev"

const APIVersion = "v1"
