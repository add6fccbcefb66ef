package config

import "fmt"

// Verify validates the configuration.
func Verify(cfg *MeshConfig) error {
	if err := verifyRouting(&cfg.Routing); err != nil {
		return err
	}
	if err := verifyMySQL(&cfg.Server, &cfg.MySQL); err != nil {
		return err
	}
	if cfg.Security.MasterSecretEnv == "" {
		return fmt.Errorf("security.master_secret_env is required")
	}
	return nil
}

func verifyRouting(cfg *RoutingSection) error {
	switch cfg.Hasher {
	case "", "murmur3", "xxhash":
	default:
		return fmt.Errorf("routing.hasher %q is not recognized", cfg.Hasher)
	}
	// distribution.DistributorByName only resolves the two stateless
	// strategies; ketama needs the shard count up front and so is not a
	// statically configured choice here.
	switch cfg.Distributor {
	case "", "modula", "range":
	default:
		return fmt.Errorf("routing.distributor %q is not recognized", cfg.Distributor)
	}
	return nil
}

func verifyMySQL(server *ServerSection, cfg *MySQLSection) error {
	if server.Kvector.Addr == "" {
		return nil
	}
	if cfg.CredentialLabel == "" {
		return fmt.Errorf("mysql.credential_label is required when server.kvector.addr is set")
	}
	if cfg.TablePrefix == "" {
		return fmt.Errorf("mysql.table_prefix is required when server.kvector.addr is set")
	}
	return nil
}
