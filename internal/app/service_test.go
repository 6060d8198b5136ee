package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/adapters/repository"
	service "github.com/anuntech/metas/internal/app"
	"github.com/anuntech/metas/internal/domain/ladder"
	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
	"github.com/anuntech/metas/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var march = model.Period{Month: 3, Year: 2024}

func tier(unit string, lvl level.Level, revenue int64, complete bool) model.GoalTier {
	return model.GoalTier{
		ID:         uuid.New(),
		Period:     march,
		Unit:       unit,
		Level:      lvl,
		Revenue:    decimal.NewFromInt(revenue),
		IsComplete: complete,
	}
}

func record(unit string, revenue, receipts int64, updated time.Time) model.PerformanceRecord {
	return model.PerformanceRecord{
		ID:        uuid.New(),
		Period:    march,
		Unit:      unit,
		Window:    march.Range(),
		Revenue:   decimal.NewFromInt(revenue),
		Receipts:  decimal.NewFromInt(receipts),
		UpdatedAt: updated,
	}
}

func newService(store *repository.MemoryStore) *service.Service {
	return service.New(store, store, service.WithLogger(logger.Nop()))
}

// failingTiers fails every call.
type failingTiers struct{ repository.TierRepository }

var errBackend = errors.New("backend down")

func (failingTiers) MarkComplete(context.Context, model.Period, string, level.Level) (model.GoalTier, error) {
	return model.GoalTier{}, errBackend
}

func (failingTiers) ListTiers(context.Context, model.Period) ([]model.GoalTier, error) {
	return nil, errBackend
}

func TestCompleteAggregateTier(t *testing.T) {
	Convey("Given a Total ladder where only level VI exists", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithTiers(tier(model.TotalUnit, level.VI, 5000, false)))
		svc := newService(store)

		Convey("When level VI is completed", func() {
			next, err := svc.CompleteAggregateTier(ctx, march, level.VI)

			Convey("Then the successor wraps around to level I", func() {
				So(err, ShouldBeNil)
				So(next, ShouldEqual, level.I)
			})

			Convey("And the tier is persisted as complete", func() {
				got, err := store.FindTier(ctx, march, model.TotalUnit, level.VI)
				So(err, ShouldBeNil)
				So(got.IsComplete, ShouldBeTrue)
			})
		})

		Convey("When a missing level is completed", func() {
			_, err := svc.CompleteAggregateTier(ctx, march, level.II)

			Convey("Then NotFound is surfaced", func() {
				So(errors.Is(err, service.ErrTierNotFound), ShouldBeTrue)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an unknown level is given", func() {
			_, err := svc.CompleteAggregateTier(ctx, march, level.Level("IX"))

			Convey("Then it is rejected before touching the store", func() {
				So(errors.Is(err, level.ErrInvalidLevel), ShouldBeTrue)
			})
		})

		Convey("When the period is invalid", func() {
			_, err := svc.CompleteAggregateTier(ctx, model.Period{Month: 13, Year: 2024}, level.VI)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidPeriod), ShouldBeTrue)
			})
		})
	})

	Convey("Given a failing repository", t, func() {
		svc := service.New(failingTiers{}, repository.NewMemoryStore(), service.WithLogger(logger.Nop()))

		Convey("Then the storage error is returned as is", func() {
			_, err := svc.CompleteAggregateTier(context.Background(), march, level.I)
			So(errors.Is(err, errBackend), ShouldBeTrue)
			So(errors.Is(err, service.ErrTierNotFound), ShouldBeFalse)
		})
	})
}

func TestCompleteUnitTier(t *testing.T) {
	Convey("Given a unit ladder I..III", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithTiers(
			tier("North", level.I, 100, false),
			tier("North", level.II, 200, false),
			tier("North", level.III, 300, false),
		))
		svc := newService(store)

		Convey("When level I is completed twice", func() {
			first, err1 := svc.CompleteUnitTier(ctx, march, "North", level.I)
			second, err2 := svc.CompleteUnitTier(ctx, march, "North", level.I)

			Convey("Then both calls succeed with the same successor", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldResemble, second)
				So(first.NextLevel, ShouldEqual, level.II)
				So(first.HasNextTier, ShouldBeTrue)
			})

			Convey("And the active level moves to II", func() {
				active, err := svc.ResolveActiveLevels(ctx, march)
				So(err, ShouldBeNil)
				So(active["North"], ShouldEqual, level.II)
			})
		})

		Convey("When the top level is completed", func() {
			adv, err := svc.CompleteUnitTier(ctx, march, "North", level.III)

			Convey("Then there is no successor tier to track", func() {
				So(err, ShouldBeNil)
				So(adv.NextLevel, ShouldEqual, level.IV)
				So(adv.HasNextTier, ShouldBeFalse)
			})
		})

		Convey("When another unit is targeted", func() {
			_, err := svc.CompleteUnitTier(ctx, march, "South", level.I)

			Convey("Then NotFound is surfaced", func() {
				So(errors.Is(err, service.ErrTierNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestResolveActiveLevels(t *testing.T) {
	Convey("Given tiers for several units", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithTiers(
			tier("North", level.I, 100, true),
			tier("North", level.II, 200, true),
			tier("South", level.I, 100, true),
			tier("South", level.II, 200, false),
		))
		svc := newService(store)

		active, err := svc.ResolveActiveLevels(ctx, march)

		Convey("Then each unit gets its active level", func() {
			So(err, ShouldBeNil)
			So(active, ShouldResemble, map[string]level.Level{"North": level.II, "South": level.II})
		})
	})

	Convey("Given a failing repository", t, func() {
		svc := service.New(failingTiers{}, repository.NewMemoryStore(), service.WithLogger(logger.Nop()))

		Convey("Then the error is returned", func() {
			_, err := svc.ResolveActiveLevels(context.Background(), march)
			So(errors.Is(err, errBackend), ShouldBeTrue)
		})
	})
}

func TestProgress(t *testing.T) {
	Convey("Given three unit records without a Total", t, func() {
		ctx := context.Background()
		at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(
			repository.WithRecords(
				record("North", 150, 90, at),
				record("South", 200, 180, at),
				record("East", 250, 270, at),
			),
			repository.WithTiers(
				tier("North", level.I, 100, false),
				tier("North", level.II, 200, false),
				tier("North", level.III, 300, false),
				tier("West", level.I, 1000, false),
			),
		)
		svc := newService(store)

		sum, err := svc.Progress(ctx, march, model.DateRange{})
		So(err, ShouldBeNil)

		Convey("Then the window defaults to the whole month", func() {
			So(sum.Window, ShouldResemble, march.Range())
		})

		Convey("Then Total comes first and is computed", func() {
			So(sum.TotalComputed, ShouldBeTrue)
			So(sum.Units[0].Unit, ShouldEqual, model.TotalUnit)
			So(sum.Units[0].Synthetic, ShouldBeTrue)

			names := make([]string, 0, len(sum.Units))
			for _, u := range sum.Units {
				names = append(names, u.Unit)
			}
			So(names, ShouldResemble, []string{model.TotalUnit, "East", "North", "South", "West"})
		})

		Convey("And the Total delinquency is derived from revenue and receipts", func() {
			m, ok := sum.Units[0].Metric(progress.DelinquencyRatio)
			So(ok, ShouldBeTrue)
			So(m.Actual, ShouldAlmostEqual, 10.0, 1e-9)

			rev, ok := sum.Units[0].Metric(progress.Revenue)
			So(ok, ShouldBeTrue)
			So(rev.Actual, ShouldEqual, 600.0)
		})

		Convey("And the mid-ladder unit reports segment progress", func() {
			north := sum.Units[2]
			So(north.ActiveLevel, ShouldEqual, level.I)
			m, ok := north.Metric(progress.Revenue)
			So(ok, ShouldBeTrue)
			So(m.Overall, ShouldEqual, 50)
			So(m.Tiers[0].Percent, ShouldEqual, 100)
			So(m.Tiers[1].Percent, ShouldEqual, 50)
		})

		Convey("And a unit with tiers but no record gets zero actuals", func() {
			west := sum.Units[4]
			So(west.HasRecord, ShouldBeFalse)
			m, ok := west.Metric(progress.Revenue)
			So(ok, ShouldBeTrue)
			So(m.Actual, ShouldEqual, 0.0)
			So(m.Overall, ShouldEqual, 0)
		})

		Convey("And a unit with a record but no tiers has no metrics", func() {
			east := sum.Units[1]
			So(east.HasRecord, ShouldBeTrue)
			So(east.ActiveLevel, ShouldEqual, level.Level(""))
			So(east.Metrics, ShouldBeEmpty)
		})
	})

	Convey("Given a completed first tier", t, func() {
		ctx := context.Background()
		at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(
			repository.WithRecords(record("North", 150, 150, at)),
			repository.WithTiers(
				tier("North", level.I, 100, true),
				tier("North", level.II, 200, false),
			),
		)
		sum, err := newService(store).Progress(ctx, march, model.DateRange{})
		So(err, ShouldBeNil)

		Convey("Then evaluation starts at the active tier", func() {
			north := sum.Units[1]
			So(north.ActiveLevel, ShouldEqual, level.II)
			m, _ := north.Metric(progress.Revenue)
			So(m.Tiers, ShouldHaveLength, 1)
			So(m.Tiers[0].Level, ShouldEqual, level.II)
			So(m.Tiers[0].Percent, ShouldEqual, 75)
		})
	})

	Convey("Given a window that excludes every record", t, func() {
		ctx := context.Background()
		rec := record("North", 150, 150, time.Now())
		rec.Window = model.DateRange{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		}
		store := repository.NewMemoryStore(repository.WithRecords(rec))
		window := model.DateRange{
			Start: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		}

		sum, err := newService(store).Progress(ctx, march, window)

		Convey("Then no unit is reported", func() {
			So(err, ShouldBeNil)
			So(sum.Units, ShouldBeEmpty)
			So(sum.TotalComputed, ShouldBeFalse)
		})
	})

	Convey("Given an inverted window", t, func() {
		window := model.DateRange{
			Start: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}
		_, err := newService(repository.NewMemoryStore()).Progress(context.Background(), march, window)

		Convey("Then it is rejected", func() {
			So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)
		})
	})
}

func TestSaveTier(t *testing.T) {
	Convey("Given a unit with level I", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithTiers(tier("North", level.I, 100, false)))
		svc := newService(store)

		Convey("When a second tier at level I is saved", func() {
			_, err := svc.SaveTier(ctx, tier("North", level.I, 150, false))

			Convey("Then it is a duplicate", func() {
				So(errors.Is(err, repository.ErrDuplicateTier), ShouldBeTrue)
			})
		})

		Convey("When a tier with a negative target is saved", func() {
			bad := tier("North", level.II, -5, false)
			_, err := svc.SaveTier(ctx, bad)

			Convey("Then the ladder is invalid", func() {
				So(errors.Is(err, ladder.ErrInvalidLadder), ShouldBeTrue)
			})
		})

		Convey("When a lower target is saved at a higher level", func() {
			low := tier("North", level.II, 50, false)
			low.ID = uuid.Nil
			saved, err := svc.SaveTier(ctx, low)

			Convey("Then it is accepted with a fresh ID", func() {
				So(err, ShouldBeNil)
				So(saved.ID, ShouldNotEqual, uuid.Nil)
				tiers, _ := store.ListTiers(ctx, march)
				So(tiers, ShouldHaveLength, 2)
			})
		})

		Convey("When a tier without unit is saved", func() {
			_, err := svc.SaveTier(ctx, tier("  ", level.III, 100, false))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidTier), ShouldBeTrue)
			})
		})
	})
}

func TestSaveRecord(t *testing.T) {
	Convey("Given a record without window or ID", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := newService(store)

		rec := record("North", 10, 10, time.Time{})
		rec.ID = uuid.Nil
		rec.Window = model.DateRange{}
		rec.Synthetic = true

		saved, err := svc.SaveRecord(ctx, rec)

		Convey("Then defaults are filled in", func() {
			So(err, ShouldBeNil)
			So(saved.ID, ShouldNotEqual, uuid.Nil)
			So(saved.Window, ShouldResemble, march.Range())
			So(saved.Synthetic, ShouldBeFalse)

			records, _ := store.ListRecords(ctx, march)
			So(records, ShouldHaveLength, 1)
		})
	})

	Convey("Given a record without unit", t, func() {
		_, err := newService(repository.NewMemoryStore()).SaveRecord(context.Background(), record("", 1, 1, time.Time{}))

		Convey("Then it is rejected", func() {
			So(errors.Is(err, model.ErrInvalidRecord), ShouldBeTrue)
		})
	})
}

// entry is one captured log line.
type entry struct {
	msg    string
	fields map[string]any
}

// recordingLogger keeps every line it is given.
type recordingLogger struct{ entries *[]entry }

func newRecordingLogger() recordingLogger { return recordingLogger{entries: &[]entry{}} }

func (l recordingLogger) add(msg string, fields []logger.Field) {
	e := entry{msg: msg, fields: make(map[string]any, len(fields))}
	for _, f := range fields {
		e.fields[f.Key] = f.Value
	}
	*l.entries = append(*l.entries, e)
}

func (l recordingLogger) Info(_ context.Context, msg string, fields ...logger.Field)  { l.add(msg, fields) }
func (l recordingLogger) Error(_ context.Context, msg string, fields ...logger.Field) { l.add(msg, fields) }
func (l recordingLogger) Debug(_ context.Context, msg string, fields ...logger.Field) { l.add(msg, fields) }
func (l recordingLogger) Warn(_ context.Context, msg string, fields ...logger.Field)  { l.add(msg, fields) }
func (l recordingLogger) Fatal(_ context.Context, msg string, fields ...logger.Field) { l.add(msg, fields) }
func (l recordingLogger) Named(string) logger.Logger                                  { return l }

func (l recordingLogger) find(msg string) (entry, bool) {
	for _, e := range *l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return entry{}, false
}

func TestServiceLogging(t *testing.T) {
	Convey("Given a service with a recording logger", t, func() {
		ctx := context.Background()
		at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(
			repository.WithRecords(record("North", 150, 150, at)),
			repository.WithTiers(tier("North", level.I, 100, false)),
		)
		rl := newRecordingLogger()
		svc := service.New(store, store, service.WithLogger(rl))

		Convey("When progress is evaluated", func() {
			_, err := svc.Progress(ctx, march, model.DateRange{})
			So(err, ShouldBeNil)

			Convey("Then the summary line reports the computed Total and the latency", func() {
				e, ok := rl.find("progress evaluated")
				So(ok, ShouldBeTrue)
				So(e.fields["total_computed"], ShouldEqual, true)
				So(e.fields["units"], ShouldEqual, 2)
				So(e.fields, ShouldContainKey, "took_ms")
			})
		})

		Convey("When active levels are resolved", func() {
			_, err := svc.ResolveActiveLevels(ctx, march)
			So(err, ShouldBeNil)

			Convey("Then the resolved map is logged", func() {
				e, ok := rl.find("active levels resolved")
				So(ok, ShouldBeTrue)
				So(e.fields["levels"], ShouldResemble, map[string]level.Level{"North": level.I})
			})
		})

		Convey("When a record is saved", func() {
			rec := record("South", 10, 10, at)
			rec.Window = model.DateRange{}
			_, err := svc.SaveRecord(ctx, rec)
			So(err, ShouldBeNil)

			Convey("Then its window bounds are logged", func() {
				e, ok := rl.find("record saved")
				So(ok, ShouldBeTrue)
				So(e.fields["window_start"], ShouldResemble, march.Range().Start)
				So(e.fields["window_end"], ShouldResemble, march.Range().End)
			})
		})
	})
}
