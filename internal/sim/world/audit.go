package world

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	e.Tick = w.tick.Load()
	e.WorldID = w.cfg.ID
	if e.Actor == "" {
		e.Actor = w.curActor
	}
	if e.Actor == "" {
		e.Actor = "SYSTEM"
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logger.Printf("audit write: %v", err)
	}
}
