// Package plugins ships ready-made plugins that expose kernel infrastructure
// (session state, artifacts, semantic memory) as callable functions. Register
// them on a kernel to give models controlled access to these facilities
// alongside application plugins.
package plugins
