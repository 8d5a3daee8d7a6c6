package codec

// RefreshFlags is the bit set of boolean refresh options.
type RefreshFlags uint8

const (
	FlagConcurrent    RefreshFlags = 1 << 0
	FlagSkipData      RefreshFlags = 1 << 1
	FlagCompleteQuery RefreshFlags = 1 << 2

	knownFlags = FlagConcurrent | FlagSkipData | FlagCompleteQuery
)

// flagNames is the fixed rendering order.
var flagNames = []struct {
	flag RefreshFlags
	name string
}{
	{FlagConcurrent, "concurrent"},
	{FlagSkipData, "skipData"},
	{FlagCompleteQuery, "isCompleteQuery"},
}

// NewRefreshFlags ORs together the flags that are set.
func NewRefreshFlags(concurrent, skipData, completeQuery bool) RefreshFlags {
	var f RefreshFlags
	if concurrent {
		f |= FlagConcurrent
	}
	if skipData {
		f |= FlagSkipData
	}
	if completeQuery {
		f |= FlagCompleteQuery
	}
	return f
}

func (f RefreshFlags) Concurrent() bool    { return f&FlagConcurrent != 0 }
func (f RefreshFlags) SkipData() bool      { return f&FlagSkipData != 0 }
func (f RefreshFlags) CompleteQuery() bool { return f&FlagCompleteQuery != 0 }

// Valid reports whether only known bits are set.
func (f RefreshFlags) Valid() bool {
	return f&^knownFlags == 0
}

// Names returns the names of the set flags in rendering order.
func (f RefreshFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}
