/*
Package ports defines the driven ports (interfaces) of the Nova core.
These interfaces decouple the action pipeline from the UI toolkit and from
storage, so the core can run headless in tests or behind any desktop shell.

# Key Interfaces

  - View / ViewModel / ViewFactory: the minimal view contract.
  - Dispatcher: MarshalToOwnerThread capability.
  - DescriptorSource: ordered module descriptors.
  - JournalStore: persisted navigation position.
*/
package ports
