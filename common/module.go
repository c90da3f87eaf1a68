package common

type Module string

const (
	ModuleBRC20 Module = "brc20"
)

func (m Module) String() string {
	return string(m)
}
