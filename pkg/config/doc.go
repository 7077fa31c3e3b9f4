// Package config loads and validates OpenHyve manifests.
//
// A manifest is a YAML document describing the control-plane endpoint,
// API token authentication, manifest-wide defaults, and the resources
// to reconcile:
//
//	endpoint: https://pve.example.com:8006
//	auth:
//	  tokenId: automation@pve!hyve
//	  tokenSecretEnv: HYVE_TOKEN_SECRET
//	defaults:
//	  node: hv01
//	resources:
//	  - id: vm.web01
//	    type: vm
//	    config:
//	      vmid: 101
//	      memory: 2048
//	      cores: 2
//	  - id: storage.backup-nfs
//	    type: storage
//	    deleteRequested: true
//	    config:
//	      storage: backup-nfs
//	      type: nfs
//	      server: 10.0.0.5
//	      export: /srv/backup
//
// Token secrets never live in the manifest; they are resolved from an
// environment variable (HYVE_TOKEN_SECRET by default) at load time.
//
// The package also owns the task polling budgets (see Timeouts), which
// can be overridden per environment variable.
package config
