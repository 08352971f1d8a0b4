package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// clockState is the persisted blob. The key is stable across releases so
// previously saved layouts restore unchanged.
type clockState struct {
	Timezones []string `json:"timezones"`
}

// zoneTime is one rendered clock face
type zoneTime struct {
	Zone   string `json:"zone"`
	Abbrev string `json:"abbrev"`
	Time   string `json:"time"`
	Date   string `json:"date"`
}

// clock renders wall-clock faces for a set of IANA zones. It consumes no
// data sources; Refresh recomputes every face from the injected clock.
type clock struct {
	clk clockwork.Clock

	mu    sync.Mutex
	zones []string
	faces []zoneTime
}

var _ types.Widget = (*clock)(nil)

func newClock(types.WidgetContext) (types.Widget, error) {
	return newClockWith(clockwork.NewRealClock()), nil
}

func newClockWith(clk clockwork.Clock) *clock {
	return &clock{clk: clk, zones: []string{"UTC"}}
}

func (c *clock) Refresh(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	faces := make([]zoneTime, 0, len(c.zones))
	for _, zone := range c.zones {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			// Zones are validated at add time; a zone missing from the
			// host tzdata falls back to UTC rather than failing the face.
			loc = time.UTC
		}
		local := now.In(loc)
		faces = append(faces, zoneTime{
			Zone:   zone,
			Abbrev: local.Format("MST"),
			Time:   local.Format("03:04:05 PM"),
			Date:   local.Format("Monday, January 02"),
		})
	}
	c.faces = faces
	return nil
}

func (c *clock) SerializeState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sonic.Marshal(clockState{Timezones: append([]string(nil), c.zones...)})
}

func (c *clock) RestoreState(state []byte) error {
	var saved clockState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("clock state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.zones = c.zones[:0]
	for _, zone := range saved.Timezones {
		c.addZone(zone)
	}
	if len(c.zones) == 0 {
		c.zones = append(c.zones, "UTC")
	}
	c.faces = nil
	return nil
}

func (c *clock) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faces = nil
	return nil
}

// addZone appends a zone, skipping empty names, unknown zones and
// duplicates. Callers hold mu.
func (c *clock) addZone(name string) bool {
	if name == "" {
		return false
	}
	if _, err := time.LoadLocation(name); err != nil {
		return false
	}
	for _, z := range c.zones {
		if z == name {
			return false
		}
	}
	c.zones = append(c.zones, name)
	return true
}

func (c *clock) view() []zoneTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]zoneTime(nil), c.faces...)
}
