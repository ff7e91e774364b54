package skillsdk_test

import (
	"fmt"
	"strings"

	"github.com/llm-inline/llmi/pkg/skillsdk"
)

func ExampleDecodeArguments() {
	payload, err := skillsdk.ReadPayload(strings.NewReader(`{"api_version":"1","arguments":{"file":"/tmp/notes.md","target_lang":"fr"}}`))
	if err != nil {
		fmt.Println(err)
		return
	}

	var args struct {
		File       string `json:"file"`
		TargetLang string `json:"target_lang"`
	}
	if err := skillsdk.DecodeArguments(payload, &args); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(args.File, args.TargetLang)
	// Output: /tmp/notes.md fr
}
