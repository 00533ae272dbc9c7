package aspen

import (
	"fmt"
	"reflect"
)

// Validator hosts are checked before their profile is saved.
type Validator interface {
	Validate() error
}

// Validate runs the host's Validate method when it has one.
func (p *Profile) Validate() error {
	if err := validateHost(p.host); err != nil {
		return fmt.Errorf("aspen: validate profile %q: %w", p.name, err)
	}
	return nil
}

func validateHost(host any) error {
	if host == nil {
		return nil
	}
	if v, ok := host.(Validator); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(host); rv.Kind() != reflect.Pointer && rv.CanAddr() {
		if v, ok := rv.Addr().Interface().(Validator); ok {
			return v.Validate()
		}
	}
	return nil
}
