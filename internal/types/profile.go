package types

// InstrumentProfileDefinition describes one instrument family: its command
// table plus the global commands the generic engine needs. Loaded from
// YAML or JSON profile files.
type InstrumentProfileDefinition struct {
	Profile       ProfileInfo          `json:"profile"`
	Identify      IdentifyConfig       `json:"identify"`
	Models        map[string]ModelInfo `json:"models"`
	NPortsQuery   string               `json:"nports_query,omitempty"`
	Channels      []ChannelConfig      `json:"channels"`
	ActiveChannel ActiveChannelConfig  `json:"active_channel,omitempty"`
	Trigger       TriggerConfig        `json:"trigger,omitempty"`
	Sweep         SweepConfig          `json:"sweep"`
	ValueFormat   ValueFormatConfig    `json:"value_format"`
	Network       NetworkConfig        `json:"network"`
	Actions       map[string]string    `json:"actions,omitempty"`
	Commands      []CommandDefinition  `json:"commands"`
}

type ProfileInfo struct {
	ID          string `json:"id"`
	Vendor      string `json:"vendor"`
	Family      string `json:"family"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type IdentifyConfig struct {
	Query string `json:"query"`
	// ModelField selects the comma-separated field of the id string holding
	// the model; negative uses the whole string.
	ModelField int `json:"model_field"`
}

// ModelInfo holds per-model parameters. The "default" entry applies to
// models not listed.
type ModelInfo struct {
	NPorts      int      `json:"nports"`
	Unsupported []string `json:"unsupported,omitempty"`
}

type ChannelConfig struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type ActiveChannelConfig struct {
	Query  string `json:"query,omitempty"`
	Select string `json:"select,omitempty"`
}

type TriggerConfig struct {
	Bus      string `json:"bus,omitempty"`
	Internal string `json:"internal,omitempty"`
}

type SweepStrategy string

const (
	// SweepWaitComplete triggers then polls the operation-complete query.
	SweepWaitComplete SweepStrategy = "wait_complete"
	// SweepForceSingle triggers, forces single mode, then restores the mode.
	SweepForceSingle SweepStrategy = "force_single"
)

type SweepConfig struct {
	Strategy      SweepStrategy `json:"strategy"`
	Trigger       string        `json:"trigger,omitempty"`
	CompleteQuery string        `json:"complete_query,omitempty"`
	CompleteReply string        `json:"complete_reply,omitempty"`
}

type ValueFormatConfig struct {
	Query     string                 `json:"query,omitempty"`
	ByteOrder ByteOrderConfig        `json:"byte_order"`
	Select    map[ValueFormat]string `json:"select"`
	Replies   map[string]ValueFormat `json:"replies,omitempty"`
	Fastest   ValueFormat            `json:"fastest"`
}

type ByteOrderConfig struct {
	Command string `json:"command,omitempty"`
	Order   string `json:"order"` // "little" or "big"
}

// NetworkConfig names the bulk S-parameter queries. Full is the full
// port-pair query whose columns arrive as S11, S22, S12, S21.
type NetworkConfig struct {
	Single []PortQuery `json:"single,omitempty"`
	Full   string      `json:"full,omitempty"`
}

type PortQuery struct {
	Port  int    `json:"port"`
	Query string `json:"query"`
}

type CommandDefinition struct {
	Name      string        `json:"name"`
	Query     string        `json:"query,omitempty"`
	Write     string        `json:"write,omitempty"`
	Doc       string        `json:"doc,omitempty"`
	Validator ValidatorSpec `json:"validator"`
}

// ValidatorSpec is the data form of a validator.
type ValidatorSpec struct {
	Type string `json:"type"` // int, float, freq, bool, enum, set

	// int, float, freq
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Exclusive bool     `json:"exclusive,omitempty"`

	// enum: native name -> token; Kind selects the native type
	// (sweep_mode, sweep_type, number, string).
	Kind   string            `json:"kind,omitempty"`
	Values map[string]string `json:"values,omitempty"`

	// set
	Allowed []int `json:"allowed,omitempty"`

	// bool: reply tokens and setting tokens
	True         string `json:"true,omitempty"`
	False        string `json:"false,omitempty"`
	TrueSetting  string `json:"true_setting,omitempty"`
	FalseSetting string `json:"false_setting,omitempty"`
}
