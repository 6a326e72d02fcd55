package state

import "github.com/vovakirdan/wirechat-client/internal/api"

// Mirrors are the reconciler-maintained copies of server-side state. Feeds
// are ordered oldest to newest; message ids are unique within a feed. Counts
// on the summaries are cached projections, only ever set by stat-update
// events or full reloads.
type Mirrors struct {
	Messages   []api.Message
	DMMessages []api.Message
	Servers    []api.Server
	Channels   []api.Channel
	Members    []api.Member
	DMs        []api.DirectMessage
}

func (m *Mirrors) clear() {
	*m = Mirrors{}
}

// Snapshot is a copy of the mirrors plus the view selection, safe to hand
// outside the event-processing context.
type Snapshot struct {
	Messages   []api.Message
	DMMessages []api.Message
	Servers    []api.Server
	Channels   []api.Channel
	Members    []api.Member
	DMs        []api.DirectMessage

	ActiveServer  string
	ActiveChannel string
	ActiveDM      string
	Revoked       bool
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// copyMessages also detaches the attachment slices; download-counter updates
// mutate them in place, and a snapshot must not alias the live mirror.
func copyMessages(in []api.Message) []api.Message {
	out := copySlice(in)
	for i := range out {
		out[i].Attachments = copySlice(out[i].Attachments)
	}
	return out
}

func hasMessage(feed []api.Message, id string) bool {
	for i := range feed {
		if feed[i].ID == id {
			return true
		}
	}
	return false
}

func dropMessage(feed []api.Message, id string) []api.Message {
	for i := range feed {
		if feed[i].ID == id {
			return append(feed[:i], feed[i+1:]...)
		}
	}
	return feed
}

func dropMessagesBySender(feed []api.Message, username string) []api.Message {
	out := feed[:0]
	for i := range feed {
		if !equalFold(feed[i].SenderUsername, username) {
			out = append(out, feed[i])
		}
	}
	return out
}
