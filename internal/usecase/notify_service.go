package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
)

// Routing hints the dispatcher maps to channels.
const (
	RoutePrices = "prices"
	RouteLive   = "live"
	RouteBonus  = "bonus"
	RouteStatus = "status"
	RouteSystem = "system"
)

// Message is one composed dispatch unit.
type Message struct {
	Body        string
	RoutingHint string
}

// Dispatcher is the downstream notification channel. Failures are
// logged by the caller, never raised to abort the cycle.
type Dispatcher interface {
	Send(ctx context.Context, body, routingHint string) error
}

// DedupRepository holds (key, value, timestamp) suppression records in
// a rolling window.
type DedupRepository interface {
	Seen(ctx context.Context, key string, since time.Time) (bool, error)
	Record(ctx context.Context, key string, value int, at time.Time) error
	PruneBefore(ctx context.Context, cutoff time.Time) error
}

// ChangeLogEntry is one row of the durable append-only audit log.
type ChangeLogEntry struct {
	Kind       string
	Category   string
	PlayerID   int64
	FixtureID  int64
	OldValue   int
	NewValue   int
	Points     int
	Suppressed bool
	Body       string
	OccurredAt time.Time
}

type ChangeLogRepository interface {
	Append(ctx context.Context, entry ChangeLogEntry) error
}

// Notifier is the composer and dedup guard: it suppresses repeats,
// groups events into human-readable batches, caps bonus volume, and
// archives everything it saw.
type Notifier struct {
	dedup      DedupRepository
	changeLog  ChangeLogRepository
	dispatcher Dispatcher
	logger     *logging.Logger

	dedupWindow time.Duration
	bonusCap    int
	now         func() time.Time
}

func NewNotifier(
	dedup DedupRepository,
	changeLog ChangeLogRepository,
	dispatcher Dispatcher,
	dedupWindow time.Duration,
	bonusCap int,
	logger *logging.Logger,
) (*Notifier, error) {
	if dedup == nil || changeLog == nil || dispatcher == nil {
		return nil, fmt.Errorf("%w: notifier dependencies are required", ErrInvalidInput)
	}
	if dedupWindow <= 0 || bonusCap < 1 {
		return nil, fmt.Errorf("%w: dedup window and bonus cap must be positive", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		dedup:       dedup,
		changeLog:   changeLog,
		dispatcher:  dispatcher,
		logger:      logger,
		dedupWindow: dedupWindow,
		bonusCap:    bonusCap,
		now:         time.Now,
	}, nil
}

// Publish runs one cycle's events through dedup, composition, and
// dispatch. fixtureHeaders maps fixture ids to display headers for live
// grouping. Dispatch failures are logged and never returned.
func (n *Notifier) Publish(ctx context.Context, events []event.Event, fixtureHeaders map[int64]string) error {
	if len(events) == 0 {
		return nil
	}

	now := n.now()
	if err := n.dedup.PruneBefore(ctx, now.Add(-n.dedupWindow)); err != nil {
		return fmt.Errorf("prune dedup records: %w", err)
	}

	survivors := make([]event.Event, 0, len(events))
	for _, e := range events {
		if !e.Deduplicated() {
			survivors = append(survivors, e)
			continue
		}
		key := e.DedupKey()
		seen, err := n.dedup.Seen(ctx, key, now.Add(-n.dedupWindow))
		if err != nil {
			return fmt.Errorf("check dedup key %q: %w", key, err)
		}
		if seen {
			if err := n.archive(ctx, e, true, ""); err != nil {
				return err
			}
			continue
		}
		if err := n.dedup.Record(ctx, key, e.NewValue, now); err != nil {
			return fmt.Errorf("record dedup key %q: %w", key, err)
		}
		survivors = append(survivors, e)
	}
	if len(survivors) == 0 {
		return nil
	}

	var (
		priceRises  []event.Event
		priceFalls  []event.Event
		finalBonus  []event.Event
		bonus       []event.Event
		statuses    []event.Event
		system      []event.Event
		liveByFixID = make(map[int64][]event.Event)
	)
	for _, e := range survivors {
		switch e.Kind {
		case event.KindPriceRise:
			priceRises = append(priceRises, e)
		case event.KindPriceFall:
			priceFalls = append(priceFalls, e)
		case event.KindFinalBonus:
			finalBonus = append(finalBonus, e)
		case event.KindBonusChange:
			bonus = append(bonus, e)
		case event.KindStatusChange:
			statuses = append(statuses, e)
		case event.KindStateChange, event.KindFixtureKickoff:
			system = append(system, e)
		default:
			liveByFixID[e.FixtureID] = append(liveByFixID[e.FixtureID], e)
		}
	}

	if len(bonus) > n.bonusCap {
		// Lossy by design: the overflow is dropped, not deferred, and
		// reconciles downstream via totals.
		sortByOwnership(bonus)
		n.logger.InfoContext(ctx, "bonus notifications capped",
			"total", len(bonus),
			"cap", n.bonusCap,
		)
		bonus = bonus[:n.bonusCap]
	}

	messages := make([]Message, 0, 8)
	dispatched := make([][]event.Event, 0, 8)

	if len(priceRises) > 0 {
		messages = append(messages, composePriceMessage("Price rises", priceRises))
		dispatched = append(dispatched, priceRises)
	}
	if len(priceFalls) > 0 {
		messages = append(messages, composePriceMessage("Price falls", priceFalls))
		dispatched = append(dispatched, priceFalls)
	}
	for _, e := range finalBonus {
		messages = append(messages, Message{
			Body:        "Final bonus confirmed - " + e.Detail,
			RoutingHint: RouteBonus,
		})
		dispatched = append(dispatched, []event.Event{e})
	}
	if len(bonus) > 0 {
		messages = append(messages, composeBonusMessage(bonus))
		dispatched = append(dispatched, bonus)
	}
	if len(statuses) > 0 {
		messages = append(messages, composeStatusMessage(statuses))
		dispatched = append(dispatched, statuses)
	}
	for _, e := range system {
		messages = append(messages, Message{Body: e.Detail, RoutingHint: RouteSystem})
		dispatched = append(dispatched, []event.Event{e})
	}

	fixtureIDs := make([]int64, 0, len(liveByFixID))
	for id := range liveByFixID {
		fixtureIDs = append(fixtureIDs, id)
	}
	sort.Slice(fixtureIDs, func(i, j int) bool { return fixtureIDs[i] < fixtureIDs[j] })
	for _, id := range fixtureIDs {
		group := liveByFixID[id]
		header := fixtureHeaders[id]
		if header == "" {
			header = fmt.Sprintf("Fixture %d", id)
		}
		messages = append(messages, composeLiveMessage(header, group))
		dispatched = append(dispatched, group)
	}

	for i, message := range messages {
		sendErr := n.dispatcher.Send(ctx, message.Body, message.RoutingHint)
		if sendErr != nil {
			n.logger.ErrorContext(ctx, "dispatch failed",
				"routing_hint", message.RoutingHint,
				"error", sendErr,
			)
		}
		for _, e := range dispatched[i] {
			if err := n.archive(ctx, e, false, message.Body); err != nil {
				return err
			}
		}
	}

	return nil
}

func (n *Notifier) archive(ctx context.Context, e event.Event, suppressed bool, body string) error {
	err := n.changeLog.Append(ctx, ChangeLogEntry{
		Kind:       string(e.Kind),
		Category:   e.Category,
		PlayerID:   e.PlayerID,
		FixtureID:  e.FixtureID,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		Points:     e.Points,
		Suppressed: suppressed,
		Body:       body,
		OccurredAt: e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

func composePriceMessage(title string, events []event.Event) Message {
	sortByOwnership(events)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(title)
	_, _ = buf.WriteString(":")
	for _, e := range events {
		_, _ = buf.WriteString("\n")
		_, _ = buf.WriteString(fmt.Sprintf("%s %s -> %s (owned %s)",
			e.PlayerName,
			player.FormatPrice(e.OldValue),
			player.FormatPrice(e.NewValue),
			player.FormatOwnership(e.Ownership),
		))
	}

	return Message{Body: buf.String(), RoutingHint: RoutePrices}
}

func composeBonusMessage(events []event.Event) Message {
	sortByOwnership(events)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("Projected bonus:")
	for _, e := range events {
		_, _ = buf.WriteString("\n")
		_, _ = buf.WriteString(fmt.Sprintf("%s %d -> %d (owned %s)",
			e.PlayerName,
			e.OldValue,
			e.NewValue,
			player.FormatOwnership(e.Ownership),
		))
	}

	return Message{Body: buf.String(), RoutingHint: RouteBonus}
}

func composeStatusMessage(events []event.Event) Message {
	sortByOwnership(events)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("Status changes:")
	for _, e := range events {
		_, _ = buf.WriteString("\n")
		_, _ = buf.WriteString(e.PlayerName)
		_, _ = buf.WriteString(": ")
		_, _ = buf.WriteString(e.Detail)
	}

	return Message{Body: buf.String(), RoutingHint: RouteStatus}
}

func composeLiveMessage(header string, events []event.Event) Message {
	sortByOwnership(events)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(header)
	for _, e := range events {
		_, _ = buf.WriteString("\n")
		_, _ = buf.WriteString(fmt.Sprintf("%s: %s %d -> %d (%+d pts, GW %d, owned %s)",
			e.PlayerName,
			categoryLabel(e.Category),
			e.OldValue,
			e.NewValue,
			e.Points,
			e.GameweekPoints,
			player.FormatOwnership(e.Ownership),
		))
	}

	return Message{Body: buf.String(), RoutingHint: RouteLive}
}

func categoryLabel(category string) string {
	switch category {
	case stat.StatGoals:
		return "Goal"
	case stat.StatAssists:
		return "Assist"
	case stat.StatCleanSheets:
		return "Clean sheet"
	case stat.StatGoalsConceded:
		return "Conceded"
	case stat.StatOwnGoals:
		return "Own goal"
	case stat.StatPenaltiesSaved:
		return "Penalty save"
	case stat.StatPenaltiesMissed:
		return "Penalty miss"
	case stat.StatYellowCards:
		return "Yellow card"
	case stat.StatRedCards:
		return "Red card"
	case stat.StatSaves:
		return "Saves"
	case stat.StatDefensiveContribution:
		return "Defensive contribution"
	default:
		return category
	}
}

func sortByOwnership(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Ownership != events[j].Ownership {
			return events[i].Ownership > events[j].Ownership
		}
		return events[i].PlayerID < events[j].PlayerID
	})
}
