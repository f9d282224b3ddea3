package alerts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"PairFlow/internal/domain/models"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func zscore(v float64) models.MetricValues {
	return models.MetricValues{ZScore: &v}
}

func TestEdgeTriggerFiresOnce(t *testing.T) {
	b := NewBook(WithIDGenerator(seqIDs()))
	a, err := b.Add(models.Alert{Type: models.AlertZScore, Condition: models.ConditionAbove, Value: 2, Enabled: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	start := time.Unix(1_700_000_000, 0)
	total := 0
	for i, v := range []float64{1, 1, 3, 3, 1} {
		fired, _ := b.Check(zscore(v), start.Add(time.Duration(i)*time.Second))
		total += len(fired)
	}
	if total != 1 {
		t.Fatalf("notifications = %d, want 1", total)
	}
	got, _ := b.Get(a.ID)
	if got.Triggered {
		t.Fatalf("alert should be reset after value fell back")
	}
	if got.LastTriggered == nil || !got.LastTriggered.Equal(start.Add(2*time.Second)) {
		t.Fatalf("lastTriggered = %v", got.LastTriggered)
	}
}

func TestThrottle(t *testing.T) {
	b := NewBook()
	b.Add(models.Alert{Type: models.AlertZScore, Condition: models.ConditionAbove, Value: 2, Enabled: true})
	now := time.Unix(1_700_000_000, 0)

	b.Check(zscore(1), now)
	fired, changed := b.Check(zscore(5), now.Add(999*time.Millisecond))
	if len(fired) != 0 || changed {
		t.Fatalf("check within throttle must not evaluate")
	}
	fired, _ = b.Check(zscore(5), now.Add(time.Second))
	if len(fired) != 1 {
		t.Fatalf("check after throttle should fire, got %d", len(fired))
	}
}

func TestAbsentValueKeepsThrottle(t *testing.T) {
	b := NewBook()
	b.Add(models.Alert{Type: models.AlertPrice, Symbol: "BTCUSDT", Condition: models.ConditionBelow, Value: 100, Enabled: true})
	now := time.Unix(1_700_000_000, 0)

	if fired, changed := b.Check(models.MetricValues{}, now); len(fired) != 0 || changed {
		t.Fatalf("absent value must be a no-op")
	}
	// the skipped pass did not start the throttle window
	mv := models.MetricValues{Prices: map[string]float64{"btcusdt": 90}}
	if fired, _ := b.Check(mv, now.Add(10*time.Millisecond)); len(fired) != 1 {
		t.Fatalf("expected price alert to fire")
	}
}

func TestCrossCondition(t *testing.T) {
	b := NewBook()
	b.Add(models.Alert{Type: models.AlertSpread, Condition: models.ConditionCross, Value: 1.5, Enabled: true})
	now := time.Unix(1_700_000_000, 0)
	step := func(i int, v float64) ([]models.AlertNotification, bool) {
		return b.Check(models.MetricValues{Spread: &v}, now.Add(time.Duration(i)*time.Second))
	}

	if fired, _ := step(0, 1.2); len(fired) != 0 {
		t.Fatalf("away from threshold must not fire")
	}
	if fired, _ := step(1, 1.505); len(fired) != 1 {
		t.Fatalf("at threshold should fire")
	}
	// a triggered cross alert resets while the value sits at the threshold
	if fired, changed := step(2, 1.495); len(fired) != 0 || !changed {
		t.Fatalf("near threshold while triggered resets, fired=%d changed=%v", len(fired), changed)
	}
	if fired, _ := step(3, 1.5); len(fired) != 1 {
		t.Fatalf("idle at threshold should fire again")
	}
	if _, changed := step(4, 2); changed {
		t.Fatalf("away from threshold while triggered keeps state")
	}
}

func TestSeverityAndMessage(t *testing.T) {
	b := NewBook(WithIDGenerator(seqIDs()))
	b.Add(models.Alert{Type: models.AlertZScore, Symbol: "btcusdt", Condition: models.ConditionAbove, Value: 2, Enabled: true})
	b.Add(models.Alert{Type: models.AlertVolume, Symbol: "ethusdt", Condition: models.ConditionAbove, Value: 10.5, Enabled: true})

	z := 3.0
	fired, _ := b.Check(models.MetricValues{ZScore: &z, Volume: map[string]float64{"ethusdt": 12}}, time.Unix(0, 0))
	if len(fired) != 2 {
		t.Fatalf("fired = %d", len(fired))
	}
	if fired[0].Message != "ZSCORE Alert: btcusdt above 2 (current: 3.0000)" || fired[0].Severity != models.SeverityCritical {
		t.Fatalf("zscore notification = %+v", fired[0])
	}
	if fired[1].Message != "VOLUME Alert: ethusdt above 10.5 (current: 12.0000)" || fired[1].Severity != models.SeverityWarning {
		t.Fatalf("volume notification = %+v", fired[1])
	}
	if fired[0].AlertID != "id-1" || fired[1].AlertID != "id-2" {
		t.Fatalf("alert ids %s %s", fired[0].AlertID, fired[1].AlertID)
	}
}

func TestNotificationsBoundedNewestFirst(t *testing.T) {
	b := NewBook(WithMaxNotifications(3), WithIDGenerator(seqIDs()))
	b.Add(models.Alert{Type: models.AlertZScore, Condition: models.ConditionAbove, Value: 0, Enabled: true})
	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < 10; i++ {
		v := 1.0
		if i%2 == 1 {
			v = -1
		}
		b.Check(zscore(v), now.Add(time.Duration(i)*time.Second))
	}
	notes := b.Notifications()
	if len(notes) != 3 {
		t.Fatalf("notifications = %d, want 3", len(notes))
	}
	if !notes[0].Timestamp.After(notes[1].Timestamp) || !notes[1].Timestamp.After(notes[2].Timestamp) {
		t.Fatalf("notifications not newest first")
	}
	b.ClearNotifications()
	if len(b.Notifications()) != 0 {
		t.Fatalf("clear left notifications")
	}
}

func TestDisabledAndMutations(t *testing.T) {
	b := NewBook()
	a, _ := b.Add(models.Alert{Type: models.AlertZScore, Condition: models.ConditionAbove, Value: 2})
	if fired, _ := b.Check(zscore(5), time.Unix(0, 0)); len(fired) != 0 {
		t.Fatalf("disabled alert fired")
	}
	if got, ok := b.Toggle(a.ID); !ok || !got.Enabled {
		t.Fatalf("toggle = %+v %v", got, ok)
	}
	if got, ok := b.SetEnabled(a.ID, false); !ok || got.Enabled {
		t.Fatalf("set enabled = %+v %v", got, ok)
	}
	if _, ok := b.Toggle("missing"); ok {
		t.Fatalf("toggle of unknown id succeeded")
	}
	if !b.Remove(a.ID) || b.Remove(a.ID) {
		t.Fatalf("remove should succeed exactly once")
	}
	if len(b.List()) != 0 {
		t.Fatalf("list not empty")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		alert models.Alert
		want  error
	}{
		{models.Alert{Type: "nope", Condition: models.ConditionAbove}, ErrInvalidType},
		{models.Alert{Type: models.AlertPrice, Condition: models.ConditionAbove}, ErrSymbolRequired},
		{models.Alert{Type: models.AlertZScore, Condition: "sideways"}, ErrInvalidCondition},
	}
	b := NewBook()
	for _, tc := range cases {
		if _, err := b.Add(tc.alert); !errors.Is(err, tc.want) {
			t.Errorf("add %+v: err=%v want %v", tc.alert, err, tc.want)
		}
	}
}

func TestReplaceResetsTriggered(t *testing.T) {
	b := NewBook()
	errs := b.Replace([]models.Alert{
		{ID: "a", Type: models.AlertZScore, Condition: models.ConditionAbove, Value: 2, Enabled: true, Triggered: true},
		{ID: "b", Type: "bogus", Condition: models.ConditionAbove},
	})
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	list := b.List()
	if len(list) != 1 || list[0].Triggered {
		t.Fatalf("replace = %+v", list)
	}
	// Idle again, so a high value fires
	if fired, _ := b.Check(zscore(3), time.Unix(0, 0)); len(fired) != 1 {
		t.Fatalf("reloaded alert did not fire")
	}
}
