package bind

import "fmt"

// NetworkBindError reports a failure to materialize a declared network.
type NetworkBindError struct {
	Network string
	Err     error
}

func (e *NetworkBindError) Error() string {
	return fmt.Sprintf("bind network %q: %v", e.Network, e.Err)
}

func (e *NetworkBindError) Unwrap() error { return e.Err }

// VolumeBindError reports a failure to materialize a declared volume.
type VolumeBindError struct {
	Volume string
	Err    error
}

func (e *VolumeBindError) Error() string {
	return fmt.Sprintf("bind volume %q: %v", e.Volume, e.Err)
}

func (e *VolumeBindError) Unwrap() error { return e.Err }
