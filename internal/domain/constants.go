package domain

const (
	DefaultOracleProvider             = "openai"
	DefaultOracleModel                = "gpt-4.1-mini"
	DefaultOracleTemperature          = 0.0
	DefaultOracleTimeoutSeconds       = 30
	DefaultOracleMaxTokens            = 1024
	DefaultMetadataPrimary            = SourceDeclarative
	DefaultFilterConcurrency          = 4
	DefaultToolTimeoutSeconds         = 30
	DefaultMaxTurns                   = 5
	DefaultPinnedArgument             = "query"
	DefaultObservabilityListenAddress = "127.0.0.1:9464"
	DefaultConfigPath                 = "tooldispatch.yaml"
)

const (
	// RedundantStepReason is reported when a step repeats the previous parameters.
	RedundantStepReason = "duplicate query, auto-terminated"
	// DefaultFinishReason is used when the oracle finishes without a reason.
	DefaultFinishReason = "query finished"
	// MaxTurnsReason is reported by the control loop when it runs out of turns.
	MaxTurnsReason = "max turns reached"
)
