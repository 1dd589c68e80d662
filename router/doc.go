// Package router hands inbound connections to the handler registered for
// their protocol type.
//
// A ProtocolTypeRouter is built once at startup from a fixed table with one
// entry per protocol ("http", "websocket") and is read-only afterwards, so a
// single instance can be shared by every connection goroutine without
// locking.
//
//	wsRoutes, err := router.NewURLRouter([]router.Route{
//	    {Pattern: "/ws/chat/", Handler: chatConsumer},
//	})
//	if err != nil {
//	    return err
//	}
//	dispatcher, err := router.NewProtocolTypeRouter(map[router.ProtocolType]router.Handler{
//	    router.ProtocolHTTP:      router.HTTPHandler(webApp),
//	    router.ProtocolWebSocket: wsRoutes,
//	})
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(":3001", dispatcher)
//
// Protocol tags arriving from the transport are parsed exactly once, in
// ParseProtocolType. Unknown tags fail with ErrProtocolNotSupported and no
// handler is invoked.
package router
