package conversation

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation. Turns are passed by value and never mutated.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func NewTurn(role Role, text string) Turn {
	return Turn{Role: role, Text: text}
}

func UserTurn(text string) Turn  { return NewTurn(RoleUser, text) }
func ModelTurn(text string) Turn { return NewTurn(RoleModel, text) }

// Repo is the per-user history window used by the relay.
// Implementations must be safe for concurrent use; commits for one user are serialized.
type Repo interface {
	// GetOrCreate returns a copy of the user's history, registering an empty one if needed.
	GetOrCreate(userID string) []Turn
	// Commit appends one exchange and trims the history to the window.
	Commit(userID string, userTurn, modelTurn Turn)
	Snapshot(userID string) ([]Turn, bool)
	Len() int
	Window() int
}
