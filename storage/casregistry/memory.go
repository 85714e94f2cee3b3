package casregistry

import "xdao.co/gridstore/storage"

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "Process-local mirror, lost on exit",
		Roles:       RoleClient | RoleDaemon,
		Open: func(Options) (storage.CAS, func() error, error) {
			return storage.NewMemory(), nil, nil
		},
	})
}
