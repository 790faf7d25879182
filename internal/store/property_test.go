package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// Each backend is checked against a plain per-channel model. One store instance
// serves all rapid iterations; every iteration works in its own namespace of
// channel names so earlier iterations cannot leak into the model.
func TestStoreMatchesModel(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			rapid.Check(t, func(rt *rapid.T) {
				ctx := context.Background()
				ns := uuid.NewString()
				channels := []string{ns + "/general", ns + "/random", ns + "/dev"}
				model := map[string][]string{}

				steps := rapid.IntRange(1, 40).Draw(rt, "steps")
				for i := 0; i < steps; i++ {
					channel := rapid.SampledFrom(channels).Draw(rt, "channel")

					if rapid.IntRange(0, 4).Draw(rt, "op") == 0 {
						n := rapid.IntRange(0, 6).Draw(rt, "n")
						removed, err := s.DeleteLastN(ctx, channel, n)
						if err != nil {
							rt.Fatalf("DeleteLastN(%q, %d): %v", channel, n, err)
						}
						want := min(n, len(model[channel]))
						if removed != want {
							rt.Fatalf("DeleteLastN(%q, %d) removed %d, want %d", channel, n, removed, want)
						}
						model[channel] = model[channel][:len(model[channel])-want]
						continue
					}

					content := fmt.Sprintf("m%d", i)
					msg := protocol.Message{Kind: protocol.KindText, Channel: channel, Author: "p", Content: content}
					if err := s.Append(ctx, &msg); err != nil {
						rt.Fatalf("Append: %v", err)
					}
					model[channel] = append(model[channel], content)
				}

				for _, channel := range channels {
					history, err := s.History(ctx, channel)
					if err != nil {
						rt.Fatalf("History(%q): %v", channel, err)
					}
					got := contents(history)
					want := model[channel]
					if len(got) != len(want) {
						rt.Fatalf("History(%q) = %v, want %v", channel, got, want)
					}
					for i := range want {
						if got[i] != want[i] {
							rt.Fatalf("History(%q) = %v, want %v", channel, got, want)
						}
					}
				}
			})
		})
	}
}
