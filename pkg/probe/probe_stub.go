//go:build !linux

package probe

import "fmt"

func gatherNetwork() ([]Interface, []Route, bool, error) {
	return nil, nil, false, fmt.Errorf("network probing is only supported on linux")
}
