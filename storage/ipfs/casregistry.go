package ipfs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "kubo",
		Description: "Local Kubo (ipfs CLI) repository",
		Roles:       casregistry.RoleClient | casregistry.RoleDaemon,
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			o := Options{Bin: opts.String("bin")}
			if repo := opts.String("repo"); repo != "" {
				o.Env = append(os.Environ(), "IPFS_PATH="+repo)
			}
			if v := opts.String("pin"); v != "" {
				pin, err := strconv.ParseBool(v)
				if err != nil {
					return nil, nil, fmt.Errorf("kubo: pin: %w", err)
				}
				o.Pin = pin
			}
			if v := opts.String("timeout"); v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, nil, fmt.Errorf("kubo: timeout: %w", err)
				}
				o.Timeout = d
			}
			return New(o), nil, nil
		},
	})
}
