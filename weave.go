// Package weave is a hierarchical dependency-injection engine.
//
// A Context is a named registry of Bindings. Each binding produces the value
// for one key: a constant, a factory, an asynchronous factory, a class built
// with constructor and property injection, a provider or an alias. Contexts
// form a tree; a child sees every binding of its ancestors and may shadow
// them without changing the parent.
//
//	app := weave.NewContext("application")
//	app.Bind("config.port").To(8080)
//
//	reg := weave.NewRegistry()
//	service := reg.MustDefine("MyService", NewMyService,
//	    weave.Param(0, weave.InjectKey("config.port")))
//	controller := reg.MustDefine("MyController", NewMyController,
//	    weave.Param(0, weave.InjectInstance(nil)))
//
//	app.Bind("services.MyService").ToClass(service).InScope(weave.Singleton)
//
//	request := app.NewChild("request")
//	request.Bind("controllers.MyController").ToClass(controller)
//
//	ctrl, err := weave.Get[*MyController](ctx, request, "controllers.MyController")
//
// Resolution tracks the keys in progress in a ResolutionSession, so cycles
// fail with the full path instead of recursing. A ContextView is a live,
// filtered projection of the bindings visible from a context that refreshes
// itself when bindings change.
package weave
