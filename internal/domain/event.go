package domain

const (
	EventNameResourceRevalidated = "resource.revalidated"
	EventNameWheelSpun           = "wheel.spun"
)

// EventResourceRevalidated is published after every fetch of a cached resource.
// Data is the raw JSON body, Err is set when the fetch failed.
type EventResourceRevalidated struct {
	Key     string
	Data    []byte
	Err     error
	Changed bool
}

func (EventResourceRevalidated) Name() string { return EventNameResourceRevalidated }

type EventWheelSpun struct {
	Draw Draw
}

func (EventWheelSpun) Name() string { return EventNameWheelSpun }
