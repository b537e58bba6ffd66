package domain

import "context"

// Role names a message author in an oracle conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged prompt fragment.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Oracle is the text-completion service used for extraction and planning.
// Implementations return an error with CodeOracleError on transport, auth or
// timeout failures; unusable content is returned as text for the caller to reject.
type Oracle interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, messages []Message, temperature float64) (string, error)

func (f OracleFunc) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	return f(ctx, messages, temperature)
}

// OraclePurpose labels why the oracle was consulted.
type OraclePurpose string

const (
	PurposeExtract OraclePurpose = "extract"
	PurposePlan    OraclePurpose = "plan"
	PurposeStep    OraclePurpose = "step"
	PurposeSelect  OraclePurpose = "select"
	PurposeQuery   OraclePurpose = "query"
)

type oraclePurposeKey struct{}

// WithOraclePurpose tags ctx so oracle decorators can label metrics.
func WithOraclePurpose(ctx context.Context, purpose OraclePurpose) context.Context {
	return context.WithValue(ctx, oraclePurposeKey{}, purpose)
}

// OraclePurposeFrom returns the purpose tagged on ctx.
func OraclePurposeFrom(ctx context.Context) OraclePurpose {
	if purpose, ok := ctx.Value(oraclePurposeKey{}).(OraclePurpose); ok {
		return purpose
	}
	return PurposeQuery
}
