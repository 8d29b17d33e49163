package workqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundtrip(t *testing.T) {
	enc := EncodeMessage([]byte("vacuum"), []byte(`{"table":"items"}`))
	dec, ok := DecodeMessage(enc)
	require.True(t, ok)
	require.Equal(t, "vacuum", string(dec.Header))
	require.Equal(t, `{"table":"items"}`, string(dec.Payload))
}

func TestRecordCRCFail(t *testing.T) {
	enc := EncodeMessage([]byte("a"), []byte("b"))
	enc[len(enc)-1] ^= 0xFF
	_, ok := DecodeMessage(enc)
	require.False(t, ok)
}

func TestRecordTruncated(t *testing.T) {
	enc := EncodeMessage([]byte("header"), nil)
	_, ok := DecodeMessage(enc[:6])
	require.False(t, ok)

	// header length larger than the record
	bad := append([]byte{0xff, 0xff, 0xff, 0xff}, enc[4:]...)
	_, ok = DecodeMessage(bad)
	require.False(t, ok)
}
