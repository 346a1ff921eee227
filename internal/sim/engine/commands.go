package engine

import (
	"errors"
	"fmt"
	"strconv"

	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/jobs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/rebirth"
	"moonrise.game/internal/sim/store"
)

// ApplyCommand applies one command immediately and emits an UPDATE. A rejected
// command leaves the state unchanged and is reported as COMMAND_REJECTED.
// Run calls it from the loop; tests may call it directly when Run is not active.
func (e *Engine) ApplyCommand(cmd protocol.CommandMsg) error {
	err := e.dispatch(cmd)

	rec := RecordedCommand{Type: cmd.Type, Arg: commandArg(cmd)}
	if err != nil {
		rec.Code = ErrorCode(err)
		e.counters.rejected.Add(1)
		e.logger.Printf("command %s rejected: %v", cmd.Type, err)
		e.emit(protocol.CommandRejectedMsg{
			Type:            protocol.TypeCommandRejected,
			ProtocolVersion: protocol.Version,
			ReqID:           cmd.ReqID,
			Command:         cmd.Type,
			Code:            rec.Code,
			Message:         err.Error(),
		})
	} else {
		e.counters.applied.Add(1)
	}
	if cmd.Type != protocol.TypeSnapshotRequest {
		e.pendingCmds = append(e.pendingCmds, rec)
	}

	e.emitUpdate()
	e.publish(0)
	return err
}

func (e *Engine) dispatch(cmd protocol.CommandMsg) error {
	switch cmd.Type {
	case protocol.TypeStart:
		if cmd.State != nil {
			st, err := stateFromWire(*cmd.State)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if err := e.importState(st); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			e.checkUnlocks(true)
		}
		if e.clock == model.ClockAwaitingRebirth {
			// Nothing to tick until the rebirth is performed.
			e.emitRebirthModal()
			return nil
		}
		e.running = true
		return nil

	case protocol.TypeStop:
		e.running = false
		return nil

	case protocol.TypeSetJob:
		if err := jobs.Select(&e.player, e.cats, e.ledger, cmd.JobName); err != nil {
			return err
		}
		e.checkUnlocks(false)
		return nil

	case protocol.TypePurchaseTalent:
		if err := store.PurchaseTalent(&e.legacy, e.cats, cmd.TalentID); err != nil {
			return err
		}
		e.refreshModifiers()
		if e.recorder != nil {
			e.recorder.RecordLegacy(e.legacy.Clone())
		}
		return nil

	case protocol.TypePurchaseHousing:
		if cmd.TierIndex == nil {
			return fmt.Errorf("purchase housing: missing tier_index: %w", ErrBadArgument)
		}
		return store.PurchaseHousing(&e.player, e.cats.Housing, *cmd.TierIndex)

	case protocol.TypePerformRebirth:
		return e.performRebirth()

	case protocol.TypeSave:
		e.queueSave()
		return nil

	case protocol.TypeSnapshotRequest:
		return nil

	default:
		return fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
	}
}

func (e *Engine) performRebirth() error {
	if e.clock != model.ClockAwaitingRebirth {
		return fmt.Errorf("perform rebirth: %w", ErrNotAwaitingRebirth)
	}
	old := e.player
	cause := e.cause
	res := rebirth.Perform(&e.legacy, rebirth.Inputs{
		Catalogs: e.cats,
		Tuning:   e.tun,
		Player:   old,
		Ledger:   e.ledger,
		Cause:    cause,
	})

	e.player = res.Player
	e.ledger = res.Ledger
	e.clock = model.ClockRunning
	e.cause = model.CauseNone
	e.running = true
	e.eventShown = false
	e.refreshModifiers()

	e.logger.Printf("rebirth #%d: cause=%s total_levels=%d echoes=+%d prestige=%v",
		e.legacy.Rebirths, cause, res.TotalLevels, res.EchoesGained, res.Prestige)

	if e.recorder != nil {
		e.recorder.RecordRebirth(RebirthRecord{
			Rebirth:      e.legacy.Rebirths,
			Day:          old.Day,
			Age:          old.Age,
			Cause:        cause,
			TotalLevels:  res.TotalLevels,
			EchoesGained: res.EchoesGained,
			Prestige:     res.Prestige,
		})
		e.recorder.RecordLegacy(e.legacy.Clone())
	}

	e.emit(protocol.RebirthCompleteMsg{
		Type:            protocol.TypeRebirthComplete,
		ProtocolVersion: protocol.Version,
		Rebirths:        e.legacy.Rebirths,
		TotalLevels:     res.TotalLevels,
		EchoesGained:    res.EchoesGained,
		Prestige:        res.Prestige,
	})
	e.checkUnlocks(true)
	e.queueSave()
	return nil
}

// ErrorCode maps a command error onto its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jobs.ErrUnknownJob),
		errors.Is(err, store.ErrUnknownTalent),
		errors.Is(err, store.ErrUnknownTier):
		return protocol.ErrUnknown
	case errors.Is(err, jobs.ErrJobLocked):
		return protocol.ErrLocked
	case errors.Is(err, store.ErrInsufficientFunds):
		return protocol.ErrFunds
	case errors.Is(err, store.ErrOutOfSequence):
		return protocol.ErrSequence
	case errors.Is(err, store.ErrMaxLevel):
		return protocol.ErrMaxLevel
	case errors.Is(err, ErrNotAwaitingRebirth), errors.Is(err, jobs.ErrAlreadyActive):
		return protocol.ErrState
	case errors.Is(err, ErrBusy):
		return protocol.ErrBusy
	case errors.Is(err, ErrBadArgument), errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidState):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func commandArg(cmd protocol.CommandMsg) string {
	switch cmd.Type {
	case protocol.TypeSetJob:
		return cmd.JobName
	case protocol.TypePurchaseTalent:
		return cmd.TalentID
	case protocol.TypePurchaseHousing:
		if cmd.TierIndex != nil {
			return strconv.Itoa(*cmd.TierIndex)
		}
	case protocol.TypeStart:
		if cmd.State != nil {
			return "state"
		}
	}
	return ""
}
