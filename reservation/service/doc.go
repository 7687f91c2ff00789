// Package service is the business layer between the transports (REST,
// WebSocket, MCP, terminal UI) and the session manager.
//
// ReservationService resolves a session id to its controller and forwards
// the call; SessionManager and ConfigManager are the narrow views of
// session.Manager and config.Manager it depends on.
//
// Usage:
//
//	configs, _ := config.NewManager("configs")
//	sessions := session.NewManager(session.ManagerOptions{
//		Store:    st,
//		Resolver: service.Resolver(configs),
//	})
//	svc := service.NewReservationService(sessions, configs)
//
//	info, err := svc.CreateSession(ctx, "reference")
//	view, err := svc.SelectSeat(ctx, info.ID, 12)
package service
