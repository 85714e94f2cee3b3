package localfs

import (
	"fmt"

	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem mirror (directory)",
		Roles:       casregistry.RoleClient | casregistry.RoleDaemon,
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			dir := opts.String("dir")
			if dir == "" {
				return nil, nil, fmt.Errorf("localfs: missing \"dir\" option")
			}
			cas, err := New(dir)
			return cas, nil, err
		},
	})
}
