package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePASV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		message string
		want    string
		wantErr bool
	}{
		{"standard", "Entering Passive Mode (192,168,1,1,195,149).", "192.168.1.1:50069", false},
		{"no parentheses", "Entering Passive Mode 127,0,0,1,4,1", "127.0.0.1:1025", false},
		{"field out of range", "Entering Passive Mode (256,0,0,1,4,1).", "", true},
		{"too few fields", "Entering Passive Mode (127,0,0,1,4).", "", true},
		{"garbage", "nope", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePASV(tt.message)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEPSV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		message string
		want    string
		wantErr bool
	}{
		{"standard", "Entering Extended Passive Mode (|||6446|)", "6446", false},
		{"zero port", "Entering Extended Passive Mode (|||0|)", "", true},
		{"port too large", "Entering Extended Passive Mode (|||70000|)", "", true},
		{"wrong delimiters", "Entering Extended Passive Mode (!!!6446!)", "", true},
		{"missing", "Entering Extended Passive Mode", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEPSV(tt.message)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPORT(t *testing.T) {
	t.Parallel()
	got, err := formatPORT("192.168.1.100:50000")
	require.NoError(t, err)
	assert.Equal(t, "192,168,1,100,195,80", got)

	got, err = formatPORT("127.0.0.1:21")
	require.NoError(t, err)
	assert.Equal(t, "127,0,0,1,0,21", got)

	_, err = formatPORT("[::1]:2121")
	assert.Error(t, err, "PORT cannot carry IPv6")

	_, err = formatPORT("no-port")
	assert.Error(t, err)
}

func TestFormatEPRT(t *testing.T) {
	t.Parallel()
	got, err := formatEPRT("132.235.1.2:6275")
	require.NoError(t, err)
	assert.Equal(t, "|1|132.235.1.2|6275|", got)

	got, err = formatEPRT("[1080::8:800:200c:417a]:5282")
	require.NoError(t, err)
	assert.Equal(t, "|2|1080::8:800:200c:417a|5282|", got)

	_, err = formatEPRT("example.com:21")
	assert.Error(t, err)
}

func TestResolveDataAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		pasvAddr    string
		controlHost string
		want        string
	}{
		{"normal address", "192.168.1.5:12345", "10.0.0.1", "192.168.1.5:12345"},
		{"zero address", "0.0.0.0:12345", "10.0.0.1", "10.0.0.1:12345"},
		{"invalid address", "invalid", "10.0.0.1", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDataAddr(tt.pasvAddr, tt.controlHost))
		})
	}
}
