package lesson

import (
	"encoding/json"
	"fmt"
)

// VoteValue accepts either a literal integer count or an atomic-delta
// string ("+1"/"-1") in an UpdateRequest's upvotes/downvotes fields (spec
// §4.5's "atomic vote delta via upvotes:\"+1\"").
type VoteValue struct {
	// Delta is set when the wire value was "+1" or "-1"; Literal is set
	// otherwise. Exactly one is populated.
	Delta   *int
	Literal *int
}

// UnmarshalJSON implements json.Unmarshaler, distinguishing a delta string
// from a literal number.
func (v *VoteValue) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch asString {
		case "+1":
			d := 1
			v.Delta = &d
			return nil
		case "-1":
			d := -1
			v.Delta = &d
			return nil
		default:
			return fmt.Errorf("vote value %q must be \"+1\" or \"-1\"", asString)
		}
	}

	var asNumber int
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("vote value must be an integer or \"+1\"/\"-1\"")
	}
	v.Literal = &asNumber
	return nil
}
