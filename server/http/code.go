package http

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// meetCodeAlphabet skips l to keep codes readable when dictated out loud.
const meetCodeAlphabet = "abcdefghijkmnopqrstuvwxyz"

var meetCodeSegments = []int{3, 4, 3}

// newMeetCode generates a room code like "abc-defg-hij", retrying until it
// finds one no live room is using.
func (srv *Server) newMeetCode() (string, error) {
	for {
		code, err := randomMeetCode()
		if err != nil {
			return "", err
		}
		if srv.rooms.MemberCount(code) == 0 {
			return code, nil
		}
	}
}

func randomMeetCode() (string, error) {
	parts := make([]string, 0, len(meetCodeSegments))
	for _, n := range meetCodeSegments {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(meetCodeAlphabet))))
			if err != nil {
				return "", fmt.Errorf("failed to generate room code: %w", err)
			}
			sb.WriteByte(meetCodeAlphabet[idx.Int64()])
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "-"), nil
}
