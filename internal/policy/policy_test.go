package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantVerb string
		wantArgs []string
		wantErr  bool
	}{
		{name: "bare ls", raw: "ls", wantVerb: "ls", wantArgs: []string{}},
		{name: "ls with flags", raw: "ls -la", wantVerb: "ls", wantArgs: []string{"-la"}},
		{name: "du", raw: "du -sh", wantVerb: "du", wantArgs: []string{"-sh"}},
		{name: "stat", raw: "stat", wantVerb: "stat", wantArgs: []string{}},
		{name: "cat", raw: "cat", wantVerb: "cat", wantArgs: []string{}},
		{name: "find with extra whitespace", raw: "  find   -name  foo ", wantVerb: "find", wantArgs: []string{"-name", "foo"}},
		{name: "rm rejected", raw: "rm -rf", wantVerb: "rm", wantErr: true},
		{name: "shell rejected", raw: "bash -c ls", wantVerb: "bash", wantErr: true},
		{name: "prefix match is not enough", raw: "lsblk", wantVerb: "lsblk", wantErr: true},
		{name: "case sensitive", raw: "LS", wantVerb: "LS", wantErr: true},
		{name: "empty", raw: "   ", wantVerb: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Validate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrDisallowed))
				var pe *Error
				require.True(t, errors.As(err, &pe))
				require.Equal(t, tt.wantVerb, pe.Verb)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantVerb, cmd.Verb)
			require.Equal(t, tt.wantArgs, cmd.Args)
		})
	}
}

func TestErrorNamesVerb(t *testing.T) {
	_, err := Validate("shutdown now")
	require.EqualError(t, err, "Command 'shutdown' is not allowed.")
}

func TestCommandArgv(t *testing.T) {
	cmd, err := Validate("du -sh")
	require.NoError(t, err)
	require.Equal(t, []string{"du", "-sh", "/var"}, cmd.Argv("/var"))
	require.Equal(t, []string{"du", "-sh"}, cmd.Argv())
}

func TestVerbs(t *testing.T) {
	require.Equal(t, []string{"cat", "du", "find", "ls", "stat"}, Verbs())
}
