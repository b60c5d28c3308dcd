/*
Package nova is a UI-agnostic action pipeline for desktop shells.

Every user command (navigate to a step, open a wizard, close it) runs as an
action through a fixed lifecycle: convention hooks before, a CanExecute gate,
Execute on a background worker, ExecuteCompleted back on the UI thread, then
hooks after. The scheduler serializes Blocking actions per owner and
delivers completions in submission order, so a host only has to supply a
dispatcher for its UI thread and a factory for its views.

# Concept

A Shell owns one affinity loop (or the host's Dispatcher), a scheduler
backed by a worker pool, and a hook repository. Sessions are seeded from
ranked module descriptors: the steps of all modules, ordered by rank, form
the content sequence. Wizards stack over the content as modal step
sequences and return their entries either to a waiting caller or to the
content view-model.

# Usage

	modules, err := descriptor.ParseFile("shell.yaml")
	if err != nil {
		log.Fatal(err)
	}

	shell, err := nova.New(
		nova.WithViewFactory(myFactory),
		nova.WithDescriptors(descriptor.Static(modules)),
		nova.WithJournal(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer shell.Close(context.Background())

	sess, err := shell.Open(ctx, "main", shellView, shellViewModel)
	if err != nil {
		log.Fatal(err)
	}

	// Blocks until the navigation action completed. Never call from the UI thread.
	if _, err := sess.Next(ctx); err != nil {
		log.Print(err)
	}

	// Stack a wizard and wait for its entries.
	entries, err := sess.StackAndWait(ctx, "New order", wizardSteps)
	if err == nil && !stack.Cancelled(entries) {
		log.Print(entries)
	}
*/
package nova
