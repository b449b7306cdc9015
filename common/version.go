package common

// PackageName is the metrics namespace for all Vigil services.
const PackageName = "vigil_backend"

// Version is set at build time via -ldflags.
var Version = "dev"
