package main

import "github.com/nyyakko/xmlang/pkgs/dialect"

// dialectFlag is a pflag.Value accepting either one of the built-in
// dialect names ("classic", "full") or a path to a YAML dialect file,
// grounded on the teacher's use of cobra.Command.Flags() with typed
// flag vars rather than a bare string everyone has to re-parse.
type dialectFlag struct {
	name string
	set  dialect.Set
}

func newDialectFlag() *dialectFlag {
	return &dialectFlag{name: "full", set: dialect.Full()}
}

func (d *dialectFlag) String() string { return d.name }
func (d *dialectFlag) Type() string   { return "dialect" }

func (d *dialectFlag) Set(value string) error {
	switch value {
	case "classic":
		d.set = dialect.Classic()
	case "full":
		d.set = dialect.Full()
	default:
		loaded, err := dialect.Load(value)
		if err != nil {
			return err
		}
		d.set = loaded
	}
	d.name = value
	return nil
}
