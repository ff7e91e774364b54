// Package skillsdk helps Go skill handlers talk to the llmi host. A handler
// binary reads its invocation payload from stdin with ReadPayload, decodes
// its arguments into a struct, and uses the returned Client to read files
// and call the language model through the host.
//
//	payload, err := skillsdk.ReadPayload(os.Stdin)
//	if err != nil { ... }
//	var args struct {
//		File       string `json:"file"`
//		TargetLang string `json:"target_lang"`
//	}
//	if err := skillsdk.DecodeArguments(payload, &args); err != nil { ... }
//	client, err := skillsdk.FromPayload(payload)
//	file := client.GetFileContent(ctx, args.File)
package skillsdk

import (
	"encoding/json"
	"io"
	"os"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Payload is the invocation document a handler receives on stdin
type Payload = bridge.Payload

// ReadPayload parses the invocation payload from r
func ReadPayload(r io.Reader) (*Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "failed to decode invocation payload")
	}
	if p.APIVersion != bridge.APIVersion {
		return nil, errors.Errorf("unsupported bridge API version %q (expected %q)", p.APIVersion, bridge.APIVersion)
	}
	return &p, nil
}

// DecodeArguments copies the bound arguments of p into out, matching on
// json tag names and converting between compatible scalar types.
func DecodeArguments(p *Payload, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create argument decoder")
	}
	if err := decoder.Decode(p.Arguments); err != nil {
		return errors.Wrap(err, "failed to decode arguments")
	}
	return nil
}

// FromPayload returns a bridge client for the endpoint in p
func FromPayload(p *Payload) (*Client, error) {
	if p.Bridge == nil || p.Bridge.URL == "" {
		return nil, errors.New("payload does not carry a bridge endpoint")
	}
	return NewClient(p.Bridge.URL, p.Bridge.Token), nil
}

// FromEnv returns a bridge client for the endpoint in the environment
func FromEnv() (*Client, error) {
	url := os.Getenv(bridge.EnvBridgeURL)
	if url == "" {
		return nil, errors.Errorf("%s is not set; is this running under llmi?", bridge.EnvBridgeURL)
	}
	return NewClient(url, os.Getenv(bridge.EnvBridgeToken)), nil
}
