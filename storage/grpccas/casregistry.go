package grpccas

import (
	"fmt"
	"strconv"
	"time"

	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "Remote mirror served by gridstore-casd",
		Roles:       casregistry.RoleClient,
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			target := opts.String("target")
			if target == "" {
				return nil, nil, fmt.Errorf("grpccas: missing \"target\" option")
			}
			var dopts DialOptions
			if v := opts.String("max_msg_bytes"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, nil, fmt.Errorf("grpccas: max_msg_bytes: %w", err)
				}
				dopts.MaxMsgBytes = n
			}
			client, err := Dial(target, dopts)
			if err != nil {
				return nil, nil, err
			}
			if v := opts.String("timeout"); v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					_ = client.Close()
					return nil, nil, fmt.Errorf("grpccas: timeout: %w", err)
				}
				client.Timeout = d
			}
			return client, client.Close, nil
		},
	})
}
