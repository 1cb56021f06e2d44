package dataflows

import (
	"github.com/finsightlab/finsight/internal/config"
)

// Config is an alias for the main application config
type Config = config.Config
