package webpack

// fluxDispatcherMembers are the members of the Flux dispatcher instance a
// bundle exports from a single module.
var fluxDispatcherMembers = []Key{
	Named("isDispatching"),
	Named("dispatch"),
	Named("dispatchForStoreTest"),
	Named("flushWaitQueue"),
	Named("_dispatchWithDevtools"),
	Named("_dispatchWithLogging"),
	Named("_dispatch"),
	Named("addInterceptor"),
	Named("wait"),
	Named("subscribe"),
	Named("unsubscribe"),
	Named("register"),
	Named("createToken"),
	Named("addDependencies"),
	DefaultKey,
}

// FluxDispatcherExport returns the name of the module's export when the
// module exports nothing but the Flux dispatcher.
func (m *Module) FluxDispatcherExport() (string, bool) {
	raw := m.rawExports()
	if len(raw) != 1 {
		return "", false
	}
	for key, e := range raw {
		for _, member := range fluxDispatcherMembers {
			if _, ok := e.Members[member]; !ok {
				return "", false
			}
		}
		return key.String(), true
	}
	return "", false
}
