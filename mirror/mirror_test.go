package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDriveMirrorUnconfigured(t *testing.T) {
	// no credentials means the capability is absent, not an error
	m, err := NewDriveMirror(context.Background(), "", "folder")
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewDriveMirrorInvalidJSON(t *testing.T) {
	_, err := NewDriveMirror(context.Background(), "{not json", "")
	require.Error(t, err)
}
