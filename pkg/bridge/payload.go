package bridge

import (
	"github.com/llm-inline/llmi/pkg/skills"
)

// Environment variables set for out-of-process handlers
const (
	EnvBridgeURL     = "LLMI_BRIDGE_URL"
	EnvBridgeToken   = "LLMI_BRIDGE_TOKEN"
	EnvBridgeVersion = "LLMI_BRIDGE_VERSION"
	EnvSkillName     = "LLMI_SKILL_NAME"
	EnvSkillDir      = "LLMI_SKILL_DIR"
)

// Endpoint locates the bridge transport for one execution
type Endpoint struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// SkillInfo identifies the skill being executed
type SkillInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Dir     string `json:"dir"`
}

// Payload is the JSON document written to an out-of-process handler's stdin
type Payload struct {
	APIVersion string              `json:"api_version"`
	Skill      SkillInfo           `json:"skill"`
	Arguments  map[string]any      `json:"arguments"`
	Values     []skills.BoundValue `json:"values"`
	Trailing   []string            `json:"trailing"`
	Raw        []string            `json:"raw"`
	Bridge     *Endpoint           `json:"bridge,omitempty"`
}

// NewPayload builds the handler payload for a bound invocation
func NewPayload(m *skills.Manifest, dir string, args *skills.BoundArguments, endpoint *Endpoint) *Payload {
	p := &Payload{
		APIVersion: APIVersion,
		Skill:      SkillInfo{Name: m.Name, Version: m.Version, Dir: dir},
		Arguments:  map[string]any{},
		Values:     []skills.BoundValue{},
		Trailing:   []string{},
		Raw:        []string{},
		Bridge:     endpoint,
	}
	if args != nil {
		p.Arguments = args.Map()
		if args.Values != nil {
			p.Values = args.Values
		}
		if args.Trailing != nil {
			p.Trailing = args.Trailing
		}
		if args.Raw != nil {
			p.Raw = args.Raw
		}
	}
	return p
}
