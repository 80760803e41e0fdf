package sim

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
)

// Fortune and misfortune entry kinds recognized by the rollers. Entries
// with other kinds are skipped at pick time.
const (
	fortuneStones = "spirit_stones"
	fortuneExp    = "exp"
	fortuneElixir = "elixir"
	fortuneBoost  = "cultivation_boost"

	misfortuneStoneLoss = "stone_loss"
	misfortuneInjury    = "injury"
	misfortuneBacklash  = "backlash"
)

// boostEffectMonths is how long a cultivation_boost fortune lasts.
const boostEffectMonths = 6

// stonesByRealm bands the spirit-stone windfall to the realm.
var stonesByRealm = map[cultivation.Realm][2]int{
	cultivation.QiRefinement:            {20, 30},
	cultivation.FoundationEstablishment: {100, 150},
	cultivation.CoreFormation:           {200, 300},
	cultivation.NascentSoul:             {400, 600},
}

// expByRealm bands the insight windfall to the realm.
var expByRealm = map[cultivation.Realm]int{
	cultivation.QiRefinement:            600,
	cultivation.FoundationEstablishment: 800,
	cultivation.CoreFormation:           1000,
	cultivation.NascentSoul:             1200,
}

// phaseFortune runs the passive-effects upkeep and the chance rolls:
// expired effects and worn-off elixir doses drop, then every living avatar
// independently rolls fortune and misfortune against the configured
// probabilities. Avatars deep in an action that shuts the world out are
// spared the rolls.
func (s *Simulator) phaseFortune() {
	w := s.W
	bundle := w.Bundle()

	for _, a := range w.Avatars.Living() {
		a.PruneEffects(w.Clock)
		a.PruneConsumed(w.Clock)

		if !w.Runtime.AllowsWorldEvents(a.ID) {
			continue
		}
		if w.Rand.Chance(w.Cfg.Game.FortuneProbability) {
			s.rollFortune(bundle, a)
		}
		if w.Rand.Chance(w.Cfg.Game.MisfortuneProbability) {
			s.rollMisfortune(bundle, a)
		}
	}
}

func (s *Simulator) rollFortune(bundle *gamedata.Bundle, a *avatar.Avatar) {
	entry := s.pickEntry(bundle.Fortunes)
	if entry == nil {
		return
	}
	w := s.W
	switch entry.Kind {
	case fortuneStones:
		band := stonesByRealm[a.Progress.Realm()]
		a.SpiritStones += w.Rand.Between(band[0], band[1])
	case fortuneExp:
		a.Progress.AddExp(expByRealm[a.Progress.Realm()])
	case fortuneElixir:
		if len(bundle.Elixirs) > 0 {
			a.GainElixir(bundle.Elixirs[w.Rand.Intn(len(bundle.Elixirs))].ID)
		}
	case fortuneBoost:
		a.AddEffect(avatar.Effect{
			Kind:      avatar.EffectCultivationSpeed,
			Factor:    1.5,
			ExpiresAt: w.Clock.Add(boostEffectMonths),
		})
	default:
		return
	}
	w.Emit(event.New(w.Clock, renderFortune(entry.Text, a), a.ID))
}

func (s *Simulator) rollMisfortune(bundle *gamedata.Bundle, a *avatar.Avatar) {
	entry := s.pickEntry(bundle.Misfortunes)
	if entry == nil {
		return
	}
	w := s.W
	switch entry.Kind {
	case misfortuneStoneLoss:
		loss := w.Rand.Between(50, 300)
		if loss > a.SpiritStones {
			loss = a.SpiritStones
		}
		a.SpiritStones -= loss
	case misfortuneInjury:
		max := a.HPMax(bundle)
		a.Damage(max*w.Rand.Between(10, 30)/100 + w.Rand.Between(10, 50))
	case misfortuneBacklash:
		a.Progress.DrainExp(w.Rand.Between(100, 500))
	default:
		return
	}
	w.Emit(event.New(w.Clock, renderFortune(entry.Text, a), a.ID))
}

// pickEntry draws one entry proportionally to the pool's weights.
func (s *Simulator) pickEntry(pool []gamedata.FortuneEntry) *gamedata.FortuneEntry {
	if len(pool) == 0 {
		return nil
	}
	weights := make([]float64, len(pool))
	for i, e := range pool {
		weights[i] = e.Weight
	}
	i := s.W.Rand.WeightedIndex(weights)
	if i < 0 {
		return nil
	}
	return &pool[i]
}

func renderFortune(text string, a *avatar.Avatar) string {
	return strings.ReplaceAll(text, "{name}", a.DisplayName())
}

// phaseNickname earns Core Formation and above avatars an epithet. Pure
// flavor, so it only runs with a model.
func (s *Simulator) phaseNickname(ctx context.Context) {
	w := s.W
	if !w.LLMReady() {
		return
	}

	var g errgroup.Group
	for _, a := range w.Avatars.Living() {
		if a.Nickname != "" || a.Progress.Realm() < cultivation.CoreFormation {
			continue
		}
		a := a
		g.Go(func() error {
			reply, err := w.Tasks.Nickname(ctx, s.promptVars(a))
			if err != nil {
				slog.Warn("nickname failed", "avatar", a.Name, "err", err)
				return nil
			}
			if reply.Nickname == "" {
				return nil
			}
			a.Nickname = reply.Nickname
			w.Emit(event.NewMajor(w.Clock,
				a.Name+" is now known across the land as \""+reply.Nickname+"\"", a.ID))
			return nil
		})
	}
	_ = g.Wait()
}
