package gathering

import (
	"fmt"
	"sort"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// Auction schedule.
const (
	auctionEveryYears = 5
	auctionMonth      = 6
	auctionMinBid     = 100
	auctionLotsMax    = 3
)

// Auction is the yearly treasure auction held in the most prosperous city.
// Treasures go to the richest bidders present; the hammer price feeds the
// host city's prosperity.
type Auction struct{}

func (Auction) Name() string { return "treasure_auction" }

// ShouldStart fires at midsummer every fifth year after the start year,
// provided a city stands to host it.
func (Auction) ShouldStart(w *sim.World) bool {
	elapsed := w.Clock.Year() - w.Cfg.Game.StartYear
	return w.Clock.Month() == auctionMonth && elapsed > 0 && elapsed%auctionEveryYears == 0 &&
		len(w.Map.RegionsOfKind(world.KindCity)) > 0
}

func (a Auction) Run(w *sim.World) []event.Event {
	host := a.hostCity(w)
	if host == nil {
		return nil
	}

	// Bidders are the richest cultivators alive; the auction draws them
	// from across the land.
	bidders := richestLiving(w, auctionLotsMax*2)
	var events []event.Event
	events = append(events, event.NewMajor(w.Clock,
		fmt.Sprintf("the yearly treasure auction opens its doors in %s", host.Name)))

	lots := a.drawLots(w)
	for i, lot := range lots {
		if i >= len(bidders) {
			break
		}
		buyer := bidders[i]
		price := lot.price + w.Rand.Between(0, lot.price/2)
		if buyer.SpiritStones < price {
			continue
		}
		buyer.SpiritStones -= price
		lot.award(buyer)
		host.Prosperity += float64(price) / 100
		events = append(events, event.New(w.Clock,
			fmt.Sprintf("%s won %s at auction for %d spirit stones", buyer.DisplayName(), lot.name, price),
			buyer.ID))
	}
	return events
}

func (Auction) hostCity(w *sim.World) *world.Region {
	var host *world.Region
	for _, city := range w.Map.RegionsOfKind(world.KindCity) {
		if host == nil || city.Prosperity > host.Prosperity {
			host = city
		}
	}
	return host
}

// lot is one item under the hammer.
type lot struct {
	name  string
	price int
	award func(*avatar.Avatar)
}

// drawLots assembles up to auctionLotsMax treasures: an auxiliary, an
// elixir, a weapon, whatever the tables hold.
func (Auction) drawLots(w *sim.World) []lot {
	bundle := w.Bundle()
	var lots []lot
	if n := len(bundle.Auxiliaries); n > 0 {
		aux := bundle.Auxiliaries[w.Rand.Intn(n)]
		lots = append(lots, lot{
			name:  aux.Name,
			price: auctionMinBid * (1 + int(aux.Realm)) * 4,
			award: func(b *avatar.Avatar) { b.AuxiliaryID = aux.ID },
		})
	}
	if n := len(bundle.Elixirs); n > 0 {
		el := bundle.Elixirs[w.Rand.Intn(n)]
		lots = append(lots, lot{
			name:  el.Name,
			price: auctionMinBid * (1 + int(el.Realm)),
			award: func(b *avatar.Avatar) { b.GainElixir(el.ID) },
		})
	}
	if n := len(bundle.Weapons); n > 0 {
		wp := bundle.Weapons[w.Rand.Intn(n)]
		lots = append(lots, lot{
			name:  wp.Name,
			price: auctionMinBid * (1 + int(wp.Realm)) * 3,
			award: func(b *avatar.Avatar) { b.WeaponID = wp.ID },
		})
	}
	if len(lots) > auctionLotsMax {
		lots = lots[:auctionLotsMax]
	}
	return lots
}

func richestLiving(w *sim.World, n int) []*avatar.Avatar {
	var free []*avatar.Avatar
	for _, a := range w.Avatars.Living() {
		if w.Runtime.AllowsGathering(a.ID) {
			free = append(free, a)
		}
	}
	sort.SliceStable(free, func(i, j int) bool {
		if free[i].SpiritStones != free[j].SpiritStones {
			return free[i].SpiritStones > free[j].SpiritStones
		}
		return free[i].ID < free[j].ID
	})
	if len(free) > n {
		free = free[:n]
	}
	return free
}
