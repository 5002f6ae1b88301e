package domain

// EventKind identifies a ledger event relevant to an item's price or
// inventory.
type EventKind string

const (
	EventPriceChanged  EventKind = "PriceChanged"
	EventItemBought    EventKind = "ItemBought"
	EventItemSold      EventKind = "ItemSold"
	EventItemDeposited EventKind = "ItemDeposited"
	EventItemWithdrawn EventKind = "ItemWithdrawn"
)

// AllEventKinds is the fixed set of kinds the feed subscription asks for.
var AllEventKinds = []EventKind{
	EventPriceChanged,
	EventItemBought,
	EventItemSold,
	EventItemDeposited,
	EventItemWithdrawn,
}

// RefreshClass groups event kinds by the state they invalidate. Both
// classes fetch the full price/inventory pair on refresh; the class only
// matters for de-duplication within an event batch.
type RefreshClass int

const (
	RefreshPrice RefreshClass = iota
	RefreshInventory
)

// Class maps an event kind to the refresh class it triggers.
func (k EventKind) Class() RefreshClass {
	if k == EventPriceChanged {
		return RefreshPrice
	}
	return RefreshInventory
}

// LedgerEvent is one entry from the ledger's event stream.
type LedgerEvent struct {
	ItemID  string
	Kind    EventKind
	Payload map[string]string
}
