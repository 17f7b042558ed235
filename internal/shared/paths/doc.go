// Package paths resolves the project layout the demo server works in.
//
// Conventional files move out of src into a hidden framework directory:
//
//	<cwd>/
//	  ├── .dumi/
//	  │   ├── pages/
//	  │   ├── api/
//	  │   ├── demos/      (demo manifests unless DEMO_DIR is set)
//	  │   └── tmp/        (tmp-<env> outside development)
//	  ├── node_modules/
//	  └── dist/
//
// # Usage
//
//	p, err := paths.Resolve(cwd, "production")
//	demos := p.DemosDir()
//
//	cfgFile, err := paths.FindConfigFile(cwd, explicit)
package paths
