package pulse

// eventKind tags the notifications native callbacks deliver to their owning Context or Stream.
type eventKind int

const (
	eventStateChanged eventKind = iota
	eventListItem
	eventListEnd
	eventSingleResult
	eventIndexResult
	eventSuccess
	eventDataReady
	eventWriteCredit
	eventDrain
	eventUnderflow
)

var eventNames = map[eventKind]string{
	eventStateChanged: "state-changed",
	eventListItem:     "list-item",
	eventListEnd:      "list-end",
	eventSingleResult: "single-result",
	eventIndexResult:  "index-result",
	eventSuccess:      "success",
	eventDataReady:    "data-ready",
	eventWriteCredit:  "write-credit",
	eventDrain:        "drain",
	eventUnderflow:    "underflow",
}

func (k eventKind) String() string {
	return eventNames[k]
}

// event carries one notification. Which fields are meaningful depends on kind.
type event struct {
	kind   eventKind
	op     uint64
	item   any
	index  uint32
	ok     bool
	nbytes int
	err    error
	done   func(error)
}
