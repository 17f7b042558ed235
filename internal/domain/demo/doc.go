// Package demo holds the demo catalogue's data model: the editable source of a
// demo, the asset metadata that identifies its entry file, and the manifests
// demos are loaded from.
//
// Manifests are YAML or TOML files matching ManifestPattern anywhere under the
// demo directory. FILE dependencies carry source text inline or reference a
// file next to the manifest; NPM dependencies name host modules that become
// the demo's require context.
package demo
