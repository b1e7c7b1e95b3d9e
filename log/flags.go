package log

var logLevelFlag string

// SetInitialLevel sets the level name that Start() applies. Command line
// parsers call this before starting the logger.
func SetInitialLevel(level string) {
	logLevelFlag = level
}
